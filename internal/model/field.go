package model

import (
	"regexp"
	"strings"
	"unicode"
)

// FieldType is the semantic type a raw cell is normalized and validated against.
type FieldType string

const (
	FieldString     FieldType = "string"
	FieldNumber     FieldType = "number"
	FieldBoolean    FieldType = "boolean"
	FieldDate       FieldType = "date"
	FieldEnum       FieldType = "enum"
	FieldIdentifier FieldType = "identifier"
)

// FieldConfig is the static descriptor of one canonical import field.
type FieldConfig struct {
	Key         string         `json:"key"`
	Label       string         `json:"label"`
	LabelAR     string         `json:"label_ar"`
	Type        FieldType      `json:"type"`
	Required    bool           `json:"required"`
	Pattern     string         `json:"pattern,omitempty"`
	PatternRe   *regexp.Regexp `json:"-"` // pre-compiled from Pattern at registry load
	PatternHint string         `json:"pattern_hint,omitempty"`
	Min         *float64       `json:"min,omitempty"`
	Max         *float64       `json:"max,omitempty"`
	Enum        []string       `json:"enum,omitempty"`
	Width       int            `json:"width,omitempty"` // identifier zero-pad width
	City        bool           `json:"city,omitempty"`  // resolved against the gazetteer
	Headers     []string       `json:"headers,omitempty"`
}

// Variants returns every header spelling accepted for the field: the key,
// its snake_case form, the English and Arabic labels, then extra headers.
func (f *FieldConfig) Variants() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[strings.ToLower(s)] {
			return
		}
		seen[strings.ToLower(s)] = true
		out = append(out, s)
	}
	add(f.Key)
	add(SnakeCase(f.Key))
	add(f.LabelAR)
	add(f.Label)
	for _, h := range f.Headers {
		add(h)
	}
	return out
}

// Synonyms returns up to n human-friendly header names for error hints.
func (f *FieldConfig) Synonyms(n int) []string {
	var out []string
	for _, v := range []string{f.LabelAR, f.Label} {
		if v != "" && len(out) < n {
			out = append(out, v)
		}
	}
	for _, h := range f.Headers {
		if len(out) >= n {
			break
		}
		if h != f.Label && h != f.LabelAR {
			out = append(out, h)
		}
	}
	if len(out) < n {
		out = append(out, f.Key)
	}
	return out
}

// InEnum reports whether v is one of the allowed enumeration values (case-insensitive).
func (f *FieldConfig) InEnum(v string) bool {
	for _, e := range f.Enum {
		if strings.EqualFold(e, v) {
			return true
		}
	}
	return false
}

// SnakeCase converts a camelCase key to snake_case.
func SnakeCase(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FieldRegistry is an indexed, ordered collection of field configs.
type FieldRegistry struct {
	Fields   []FieldConfig
	byKey    map[string]*FieldConfig
	required []*FieldConfig
}

// NewFieldRegistry creates a FieldRegistry with indexed lookups.
// Pre-compiles validation regexes from FieldConfig.Pattern.
func NewFieldRegistry(fields []FieldConfig) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byKey:  make(map[string]*FieldConfig, len(fields)),
	}
	for i := range r.Fields {
		f := &r.Fields[i]
		if f.Pattern != "" {
			if re, err := regexp.Compile(f.Pattern); err == nil {
				f.PatternRe = re
			}
		}
		r.byKey[f.Key] = f
		if f.Required {
			r.required = append(r.required, f)
		}
	}
	return r
}

// ByKey returns the field config for the given key, or nil if not found.
func (r *FieldRegistry) ByKey(key string) *FieldConfig {
	return r.byKey[key]
}

// Required returns all required field configs in declaration order.
func (r *FieldRegistry) Required() []*FieldConfig {
	return r.required
}

// Keys returns the canonical field keys in declaration order.
func (r *FieldRegistry) Keys() []string {
	keys := make([]string, len(r.Fields))
	for i := range r.Fields {
		keys[i] = r.Fields[i].Key
	}
	return keys
}
