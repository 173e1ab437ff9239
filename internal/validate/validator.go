// Package validate applies field, cross-field, referential, duplicate and city
// rules to mapped import rows.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-import/internal/city"
	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/normalize"
)

var branchListSplitter = strings.NewReplacer("،", ";", "؛", ";")

// Row is the input unit for building a FileIndex.
type Row struct {
	Number int
	Data   map[string]string
}

// FileIndex records the first row at which company names, company IDs and
// branches appear in the file being imported.
type FileIndex struct {
	companyNames map[string]int
	companyIDs   map[string]int
	branches     map[string]int
}

// Validator checks rows of one entity type against a reference snapshot and a
// city resolver.
type Validator struct {
	schema   *model.Schema
	index    *Index
	resolver *city.Resolver
	width    int
	// idField is the company ID config with its pattern sized to width.
	idField *model.FieldConfig
}

// New creates a Validator. width is the company ID zero-pad width.
func New(entity model.EntityType, index *Index, resolver *city.Resolver, width int) (*Validator, error) {
	schema := model.SchemaFor(entity)
	if schema == nil {
		return nil, eris.Errorf("validate: unknown entity type %d", int(entity))
	}
	if width <= 0 {
		width = model.CompanyIDWidth
	}
	if index == nil {
		index = NewIndex(model.Reference{}, width)
	}
	v := &Validator{schema: schema, index: index, resolver: resolver, width: width}
	if f := schema.Fields.ByKey(model.KeyCompanyID); f != nil {
		v.idField = identifierConfig(f, width)
	}
	return v, nil
}

// identifierConfig copies f with its width, pattern and hint set for width digits.
func identifierConfig(f *model.FieldConfig, width int) *model.FieldConfig {
	c := *f
	c.Width = width
	c.Pattern = fmt.Sprintf(`^\d{%d}$`, width)
	c.PatternRe = regexp.MustCompile(c.Pattern)
	c.PatternHint = fmt.Sprintf("company ID must be %d digits, e.g. %s", width, PadID("1", width))
	return &c
}

// Resolver returns the city resolver in use.
func (v *Validator) Resolver() *city.Resolver {
	return v.resolver
}

// Width returns the company ID zero-pad width.
func (v *Validator) Width() int {
	return v.width
}

// BuildFileIndex scans all rows of the file in row order.
func (v *Validator) BuildFileIndex(rows []Row) *FileIndex {
	fi := &FileIndex{
		companyNames: make(map[string]int),
		companyIDs:   make(map[string]int),
		branches:     make(map[string]int),
	}
	first := func(m map[string]int, k string, n int) {
		if k == "" {
			return
		}
		if _, ok := m[k]; !ok {
			m[k] = n
		}
	}
	for _, r := range rows {
		switch v.schema.Entity {
		case model.EntityCompanies:
			first(fi.companyNames, nameKey(r.Data[model.KeyCompanyName]), r.Number)
			first(fi.companyIDs, PadID(stripQuote(strings.TrimSpace(r.Data[model.KeyCompanyID])), v.width), r.Number)
		case model.EntityBranches:
			if owner := v.branchOwnerKey(r.Data); owner != "" {
				if b := nameKey(r.Data[model.KeyBranchName]); b != "" {
					first(fi.branches, owner+"|"+b, r.Number)
				}
			}
		}
	}
	return fi
}

// branchOwnerKey identifies the company a branch row belongs to, preferring
// the resolved company ID.
func (v *Validator) branchOwnerKey(data map[string]string) string {
	if c, ok := v.index.FindCompany(data[model.KeyCompanyID]); ok {
		return "id:" + PadID(c.ID, v.width)
	}
	if c, ok := v.index.CompanyByName(data[model.KeyCompanyName]); ok {
		return "id:" + PadID(c.ID, v.width)
	}
	if id := strings.TrimSpace(data[model.KeyCompanyID]); id != "" {
		return "id:" + PadID(stripQuote(id), v.width)
	}
	if n := nameKey(data[model.KeyCompanyName]); n != "" {
		return "name:" + n
	}
	return ""
}

// check accumulates findings for one row, at most one error per field.
type check struct {
	row      int
	data     map[string]string
	errs     []model.Finding
	warns    []model.Finding
	errField map[string]bool
}

func (c *check) value(key string) string {
	return strings.TrimSpace(c.data[key])
}

func (c *check) fail(field, code, msg, suggestion string) {
	if c.errField[field] {
		return
	}
	c.errField[field] = true
	c.errs = append(c.errs, model.Finding{
		Row: c.row, Field: field, Value: c.data[field], Message: msg,
		Suggestion: suggestion, Severity: model.SeverityError, Code: code,
	})
}

func (c *check) warn(field, code, msg, suggestion string) {
	c.warns = append(c.warns, model.Finding{
		Row: c.row, Field: field, Value: c.data[field], Message: msg,
		Suggestion: suggestion, Severity: model.SeverityWarning, Code: code,
	})
}

// ValidateRow returns the error and warning findings for one mapped,
// normalized row. fi may be nil to skip in-file duplicate checks.
func (v *Validator) ValidateRow(rowNumber int, data map[string]string, fi *FileIndex) (errs, warns []model.Finding) {
	c := &check{row: rowNumber, data: data, errField: make(map[string]bool)}

	v.checkRequired(c)
	v.checkFields(c)
	v.checkOneOf(c)
	v.checkDateOrder(c)
	v.checkReferences(c)
	v.checkDuplicates(c, fi)
	v.checkCities(c)

	return c.errs, c.warns
}

func (v *Validator) checkRequired(c *check) {
	for _, f := range v.schema.Fields.Required() {
		if c.value(f.Key) == "" {
			c.fail(f.Key, model.CodeRequired, "required field is empty", "fill in "+labelOf(f))
		}
	}
}

func (v *Validator) checkFields(c *check) {
	fields := v.schema.Fields.Fields
	for i := range fields {
		f := &fields[i]
		if f.Key == model.KeyCompanyID && v.idField != nil {
			f = v.idField
		}
		val := c.value(f.Key)
		if val == "" {
			continue
		}
		if code, msg, hint := fieldProblem(f, val); code != "" {
			c.fail(f.Key, code, msg, hint)
		}
	}
}

// fieldProblem returns the first type, pattern, range or enum violation of val.
func fieldProblem(f *model.FieldConfig, val string) (code, msg, hint string) {
	switch f.Type {
	case model.FieldDate:
		if _, ok := normalize.ParseDate(val); !ok {
			return model.CodeFormat, "invalid date", "use dd-mmm-yyyy, e.g. 15-Jan-2024"
		}
	case model.FieldBoolean:
		if val != normalize.True && val != normalize.False {
			return model.CodeFormat, "invalid yes/no value", "use " + normalize.True + " or " + normalize.False
		}
	case model.FieldNumber:
		n, ok := normalize.ParseNumber(val)
		if !ok {
			return model.CodeFormat, "must be a number", ""
		}
		if msg := rangeProblem(f, n); msg != "" {
			return model.CodeRange, msg, "enter a value " + strings.TrimPrefix(msg, "must be ")
		}
	case model.FieldEnum:
		if !f.InEnum(val) {
			return model.CodeEnum, "value is not an allowed option", "one of: " + strings.Join(f.Enum, ", ")
		}
	}
	if f.PatternRe != nil && !f.PatternRe.MatchString(val) {
		return model.CodeFormat, "invalid format", f.PatternHint
	}
	return "", "", ""
}

func rangeProblem(f *model.FieldConfig, n float64) string {
	switch {
	case f.Min != nil && f.Max != nil && (n < *f.Min || n > *f.Max):
		return fmt.Sprintf("must be between %s and %s", fmtNum(*f.Min), fmtNum(*f.Max))
	case f.Min != nil && f.Max == nil && n < *f.Min:
		return "must be at least " + fmtNum(*f.Min)
	case f.Max != nil && f.Min == nil && n > *f.Max:
		return "must be at most " + fmtNum(*f.Max)
	}
	return ""
}

func fmtNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (v *Validator) checkOneOf(c *check) {
	for _, group := range v.schema.OneOf {
		present := false
		for _, k := range group {
			if c.value(k) != "" {
				present = true
				break
			}
		}
		if present {
			continue
		}
		msg := "one of " + strings.Join(group, " or ") + " is required"
		for _, k := range group {
			c.fail(k, model.CodeEitherOr, msg, "fill in "+labelOf(v.schema.Fields.ByKey(k)))
		}
	}
}

func (v *Validator) checkDateOrder(c *check) {
	if v.schema.Fields.ByKey(model.KeyContractStartDate) == nil || c.errField[model.KeyContractEndDate] || c.errField[model.KeyContractStartDate] {
		return
	}
	start, okStart := normalize.ParseDate(c.value(model.KeyContractStartDate))
	end, okEnd := normalize.ParseDate(c.value(model.KeyContractEndDate))
	if okStart && okEnd && end.Before(start) {
		c.fail(model.KeyContractEndDate, model.CodeDateOrder, "end date is before start date",
			"end date must be on or after "+start.Format(normalize.DateLayout))
	}
}

func (v *Validator) checkReferences(c *check) {
	switch v.schema.Entity {
	case model.EntityContracts, model.EntityContractsAdvanced:
		id := c.value(model.KeyCompanyID)
		if id == "" || c.errField[model.KeyCompanyID] {
			return
		}
		company, ok := v.index.FindCompany(id)
		if !ok {
			c.fail(model.KeyCompanyID, model.CodeCompanyNotFound, "company not found", "import the company first or check the company ID")
			return
		}
		if n := v.index.ContractCount(company.ID); n > 0 {
			c.warn(model.KeyCompanyID, model.CodeExistingContract,
				fmt.Sprintf("company already has %d contract(s)", n), "")
		}
		if v.schema.Entity == model.EntityContractsAdvanced {
			v.checkBranchNames(c, company)
		}
	case model.EntityBranches:
		v.checkBranchCompany(c)
	}
}

func (v *Validator) checkBranchNames(c *check, company model.Company) {
	list := c.value(model.KeyBranchNames)
	if list == "" || !v.index.HasBranches(company.ID) {
		return
	}
	for _, name := range strings.Split(branchListSplitter.Replace(list), ";") {
		name = strings.TrimSpace(name)
		if name == "" || v.index.HasBranch(company.ID, name) {
			continue
		}
		c.warn(model.KeyBranchNames, model.CodeBranchNotFound,
			"branch not found for company", fmt.Sprintf("%q is not a branch of %s", name, company.Name))
	}
}

func (v *Validator) checkBranchCompany(c *check) {
	id, name := c.value(model.KeyCompanyID), c.value(model.KeyCompanyName)

	var byID model.Company
	idOK := false
	if id != "" && !c.errField[model.KeyCompanyID] {
		byID, idOK = v.index.FindCompany(id)
		if !idOK {
			c.fail(model.KeyCompanyID, model.CodeCompanyNotFound, "company not found", "import the company first or check the company ID")
		}
	}
	if name == "" || c.errField[model.KeyCompanyName] {
		return
	}
	if idOK {
		if nameKey(byID.Name) != nameKey(name) {
			c.fail(model.KeyCompanyName, model.CodeCompanyMismatch, "company name does not match company ID", byID.Name)
		}
		return
	}
	if id == "" {
		if _, ok := v.index.CompanyByName(name); !ok {
			c.fail(model.KeyCompanyName, model.CodeCompanyNotFound, "company not found", "import the company first or check the company name")
		}
	}
}

func (v *Validator) checkDuplicates(c *check, fi *FileIndex) {
	switch v.schema.Entity {
	case model.EntityCompanies:
		name := c.value(model.KeyCompanyName)
		if name != "" {
			if existing, ok := v.index.CompanyByName(name); ok {
				c.warn(model.KeyCompanyName, model.CodeDuplicateName,
					"a company with this name already exists", "existing company ID "+existing.ID)
			} else if fi != nil {
				if first, ok := fi.companyNames[nameKey(name)]; ok && first < c.row {
					c.warn(model.KeyCompanyName, model.CodeDuplicateName,
						fmt.Sprintf("company name repeated in file (first at row %d)", first), "")
				}
			}
		}
		id := c.value(model.KeyCompanyID)
		if id == "" || c.errField[model.KeyCompanyID] {
			return
		}
		if existing, ok := v.index.FindCompany(id); ok {
			c.fail(model.KeyCompanyID, model.CodeDuplicateID, "company ID already exists",
				"leave empty to assign a new ID; "+id+" belongs to "+existing.Name)
			return
		}
		if fi != nil {
			if first, ok := fi.companyIDs[PadID(stripQuote(id), v.width)]; ok && first < c.row {
				c.fail(model.KeyCompanyID, model.CodeDuplicateID,
					fmt.Sprintf("company ID repeated in file (first at row %d)", first), "")
			}
		}
	case model.EntityBranches:
		branch := c.value(model.KeyBranchName)
		if branch == "" {
			return
		}
		if company, ok := v.resolveBranchCompany(c); ok && v.index.HasBranch(company.ID, branch) {
			c.warn(model.KeyBranchName, model.CodeDuplicateBranch, "branch already exists for this company", "")
			return
		}
		if fi == nil {
			return
		}
		owner := v.branchOwnerKey(c.data)
		if owner == "" {
			return
		}
		if first, ok := fi.branches[owner+"|"+nameKey(branch)]; ok && first < c.row {
			c.warn(model.KeyBranchName, model.CodeDuplicateBranch,
				fmt.Sprintf("branch repeated in file (first at row %d)", first), "")
		}
	}
}

func (v *Validator) resolveBranchCompany(c *check) (model.Company, bool) {
	if company, ok := v.index.FindCompany(c.value(model.KeyCompanyID)); ok {
		return company, true
	}
	if c.value(model.KeyCompanyID) != "" {
		return model.Company{}, false
	}
	return v.index.CompanyByName(c.value(model.KeyCompanyName))
}

func (v *Validator) checkCities(c *check) {
	if v.resolver == nil {
		return
	}
	fields := v.schema.Fields.Fields
	for i := range fields {
		f := &fields[i]
		val := c.value(f.Key)
		if !f.City || val == "" || c.errField[f.Key] {
			continue
		}
		res := v.resolver.ValidateCity(val)
		if res.IsValid {
			continue
		}
		c.fail(f.Key, model.CodeUnknownCity, "unknown city", CitySuggestionText(res.Suggestions))
	}
}

// CitySuggestionText renders resolver suggestions as a finding suggestion.
func CitySuggestionText(suggestions []string) string {
	if len(suggestions) == 0 {
		return "add the city or correct the spelling"
	}
	return "did you mean: " + strings.Join(suggestions, ", ")
}

func labelOf(f *model.FieldConfig) string {
	if f == nil {
		return ""
	}
	if f.LabelAR != "" {
		return f.LabelAR
	}
	return f.Label
}
