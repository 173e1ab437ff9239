package mapper

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-import/internal/model"
)

// maxSynonyms is how many accepted headers are suggested per missing field.
const maxSynonyms = 3

// MissingField is one required canonical field absent from the header row.
type MissingField struct {
	Field    string   `json:"field"`
	Label    string   `json:"label"`
	Synonyms []string `json:"synonyms"`
}

// MissingColumnsError rejects an import whose header row lacks required fields.
type MissingColumnsError struct {
	Entity  model.EntityType
	Missing []MissingField
}

func (e *MissingColumnsError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		parts[i] = fmt.Sprintf("%s (accepted headers: %s)", m.Field, strings.Join(m.Synonyms, ", "))
	}
	return fmt.Sprintf("mapper: %s file is missing required columns: %s", e.Entity, strings.Join(parts, "; "))
}

// Fields returns the missing canonical field keys.
func (e *MissingColumnsError) Fields() []string {
	out := make([]string, len(e.Missing))
	for i, m := range e.Missing {
		out[i] = m.Field
	}
	return out
}

// Mapping is the header-to-field resolution for one file.
type Mapping struct {
	Entity model.EntityType
	Header []string
	// Columns maps column index to canonical field key.
	Columns map[int]string
	// Fields maps canonical field key to the first column carrying it.
	Fields   map[string]int
	Unmapped []string
}

// Build maps every header of a file. It returns *MissingColumnsError when a
// required field of the entity schema is not mapped by any column.
func Build(header []string, entity model.EntityType) (*Mapping, error) {
	schema := model.SchemaFor(entity)
	if schema == nil {
		return nil, eris.Errorf("mapper: unknown entity type %d", int(entity))
	}

	m := &Mapping{
		Entity:  entity,
		Header:  header,
		Columns: make(map[int]string, len(header)),
		Fields:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		key := MapHeaderToField(h, entity)
		if key == "" {
			if strings.TrimSpace(h) != "" {
				m.Unmapped = append(m.Unmapped, h)
			}
			continue
		}
		m.Columns[i] = key
		if _, seen := m.Fields[key]; !seen {
			m.Fields[key] = i
		}
	}

	var missing []MissingField
	for _, f := range schema.Fields.Required() {
		if _, ok := m.Fields[f.Key]; ok {
			continue
		}
		missing = append(missing, MissingField{
			Field:    f.Key,
			Label:    f.LabelAR,
			Synonyms: f.Synonyms(maxSynonyms),
		})
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Entity: entity, Missing: missing}
	}
	return m, nil
}

// Row extracts the mapped cells of one data row keyed by canonical field.
// Cells beyond the row's length map to "".
func (m *Mapping) Row(cells []string) map[string]string {
	out := make(map[string]string, len(m.Fields))
	for key, idx := range m.Fields {
		if idx < len(cells) {
			out[key] = cells[idx]
		} else {
			out[key] = ""
		}
	}
	return out
}
