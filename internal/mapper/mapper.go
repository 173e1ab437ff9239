// Package mapper maps free-text spreadsheet headers (Arabic or English) onto
// the canonical fields of an entity schema.
package mapper

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/crm-import/internal/model"
)

// minContainLen is the shortest string (in runes) allowed to participate in
// a containment match.
const minContainLen = 3

var alefReplacer = strings.NewReplacer("أ", "ا", "إ", "ا", "آ", "ا")

type keywordRule struct {
	keywords []string
	field    string
	entities []model.EntityType
}

var keywordRules = []keywordRule{
	{[]string{"هاتف", "جوال", "موبايل", "رقم"}, model.KeyPhone, []model.EntityType{model.EntityCompanies}},
	{[]string{"بريد", "ايميل"}, model.KeyEmail, []model.EntityType{model.EntityCompanies}},
	{[]string{"مدينة", "مدينه"}, model.KeyCity, []model.EntityType{model.EntityCompanies, model.EntityBranches}},
	{[]string{"عنوان"}, model.KeyAddress, []model.EntityType{model.EntityCompanies}},
	{[]string{"موقع"}, model.KeyLocation, []model.EntityType{model.EntityBranches}},
	{[]string{"بداية"}, model.KeyContractStartDate, []model.EntityType{model.EntityContracts, model.EntityContractsAdvanced}},
	{[]string{"نهاية", "انتهاء"}, model.KeyContractEndDate, []model.EntityType{model.EntityContracts, model.EntityContractsAdvanced}},
	{[]string{"مدة", "فترة"}, model.KeyContractPeriodMonths, []model.EntityType{model.EntityContractsAdvanced}},
	{[]string{"فرع"}, model.KeyBranchName, []model.EntityType{model.EntityBranches}},
}

func (k keywordRule) appliesTo(e model.EntityType) bool {
	for _, x := range k.entities {
		if x == e {
			return true
		}
	}
	return false
}

// foldKey trims, drops "*" required markers and case-folds s.
func foldKey(s string) string {
	s = strings.ReplaceAll(s, "*", "")
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(norm.NFC.String(s))
}

// looseKey is foldKey plus Arabic alef normalization.
func looseKey(s string) string {
	return alefReplacer.Replace(foldKey(s))
}

// MapHeaderToField returns the canonical field key for header, or "" when
// nothing matches. Rules, first match wins: exact case-insensitive variant
// match, the most specific containment match in either direction, then the
// Arabic keyword table.
func MapHeaderToField(header string, entity model.EntityType) string {
	schema := model.SchemaFor(entity)
	if schema == nil {
		return ""
	}
	fields := schema.Fields.Fields

	exact := foldKey(header)
	if exact == "" {
		return ""
	}
	for i := range fields {
		for _, v := range fields[i].Variants() {
			if foldKey(v) == exact {
				return fields[i].Key
			}
		}
	}

	loose := looseKey(header)
	if key := bestContainment(loose, fields); key != "" {
		return key
	}

	for _, rule := range keywordRules {
		if !rule.appliesTo(entity) || schema.Fields.ByKey(rule.field) == nil {
			continue
		}
		for _, kw := range rule.keywords {
			if strings.Contains(loose, looseKey(kw)) {
				return rule.field
			}
		}
	}
	return ""
}

// containMatch ranks one containment hit. Longer shared text wins, then the
// variant closest in length to the header, then the earliest position in the
// header; remaining ties keep declaration order.
type containMatch struct {
	shared int
	excess int
	pos    int
}

func (m containMatch) better(o containMatch) bool {
	if m.shared != o.shared {
		return m.shared > o.shared
	}
	if m.excess != o.excess {
		return m.excess < o.excess
	}
	return m.pos < o.pos
}

func bestContainment(loose string, fields []model.FieldConfig) string {
	var (
		key  string
		best containMatch
	)
	headerLen := utf8.RuneCountInString(loose)
	for i := range fields {
		for _, v := range fields[i].Variants() {
			lv := looseKey(v)
			vLen := utf8.RuneCountInString(lv)
			var m containMatch
			switch {
			case contains(loose, lv):
				m = containMatch{shared: vLen, excess: headerLen - vLen, pos: utf8.RuneCountInString(loose[:strings.Index(loose, lv)])}
			case contains(lv, loose):
				m = containMatch{shared: headerLen, excess: vLen - headerLen}
			default:
				continue
			}
			if key == "" || m.better(best) {
				key, best = fields[i].Key, m
			}
		}
	}
	return key
}

func contains(s, sub string) bool {
	return utf8.RuneCountInString(sub) >= minContainLen && strings.Contains(s, sub)
}
