package validate

import (
	"strings"

	"github.com/sells-group/crm-import/internal/model"
)

// nameKey is the case-insensitive comparison form of a company or branch name.
func nameKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// PadID left-pads an all-digit identifier with zeros to width.
func PadID(id string, width int) string {
	if width <= 0 || len(id) >= width || id == "" {
		return id
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return id
		}
	}
	return strings.Repeat("0", width-len(id)) + id
}

func stripQuote(id string) string {
	return strings.TrimLeft(id, "'’`")
}

// Index is the lookup view of a read-only reference snapshot.
type Index struct {
	width     int
	byID      map[string]model.Company
	byName    map[string]model.Company
	branches  map[string]map[string]bool
	contracts map[string]int
}

// NewIndex indexes ref. Company IDs are indexed both as stored and zero-padded to width.
func NewIndex(ref model.Reference, width int) *Index {
	ix := &Index{
		width:     width,
		byID:      make(map[string]model.Company, len(ref.Companies)*2),
		byName:    make(map[string]model.Company, len(ref.Companies)),
		branches:  make(map[string]map[string]bool),
		contracts: make(map[string]int),
	}
	for _, c := range ref.Companies {
		id := strings.TrimSpace(c.ID)
		ix.byID[id] = c
		ix.byID[PadID(id, width)] = c
		if k := nameKey(c.Name); k != "" {
			if _, dup := ix.byName[k]; !dup {
				ix.byName[k] = c
			}
		}
	}
	for _, b := range ref.Branches {
		id := PadID(strings.TrimSpace(b.CompanyID), width)
		if ix.branches[id] == nil {
			ix.branches[id] = make(map[string]bool)
		}
		ix.branches[id][nameKey(b.Name)] = true
	}
	for _, ct := range ref.Contracts {
		ix.contracts[PadID(strings.TrimSpace(ct.CompanyID), width)]++
	}
	return ix
}

// FindCompany resolves a company identifier trying, in order, the raw value,
// its zero-padded form and the form with a leading quote stripped.
func (ix *Index) FindCompany(id string) (model.Company, bool) {
	raw := strings.TrimSpace(id)
	if raw == "" {
		return model.Company{}, false
	}
	stripped := stripQuote(raw)
	for _, candidate := range []string{raw, PadID(raw, ix.width), stripped, PadID(stripped, ix.width)} {
		if c, ok := ix.byID[candidate]; ok {
			return c, true
		}
	}
	return model.Company{}, false
}

// CompanyByName resolves a company by case-insensitive name.
func (ix *Index) CompanyByName(name string) (model.Company, bool) {
	c, ok := ix.byName[nameKey(name)]
	return c, ok
}

// HasBranches reports whether any branch is known for the company.
func (ix *Index) HasBranches(companyID string) bool {
	return len(ix.branches[PadID(companyID, ix.width)]) > 0
}

// HasBranch reports whether the company already has a branch with this name.
func (ix *Index) HasBranch(companyID, name string) bool {
	return ix.branches[PadID(companyID, ix.width)][nameKey(name)]
}

// ContractCount returns how many existing contracts reference the company.
func (ix *Index) ContractCount(companyID string) int {
	return ix.contracts[PadID(companyID, ix.width)]
}
