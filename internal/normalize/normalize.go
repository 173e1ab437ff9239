// Package normalize coerces raw import cells into the canonical rendering of
// their field type. Normalization is idempotent and never fails: input that
// cannot be coerced is passed through with a warning.
package normalize

import (
	"strings"

	"github.com/sells-group/crm-import/internal/model"
)

// Boolean renderings.
const (
	True  = "نعم"
	False = "لا"
)

var (
	trueTokens  = map[string]bool{"نعم": true, "yes": true, "true": true}
	falseTokens = map[string]bool{"لا": true, "no": true, "false": true}
)

var digitReplacer = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
)

// ASCIIDigits converts Arabic-Indic and Persian digits to ASCII.
func ASCIIDigits(s string) string {
	return digitReplacer.Replace(s)
}

// Options tunes type-specific behaviour.
type Options struct {
	// IdentifierWidth overrides FieldConfig.Width when > 0.
	IdentifierWidth int
}

// Normalizer applies Normalize with fixed options.
type Normalizer struct {
	opts Options
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

// Normalize renders raw according to cfg.
func (n *Normalizer) Normalize(raw string, cfg *model.FieldConfig) model.NormalizedValue {
	v := strings.TrimSpace(raw)
	out := model.NormalizedValue{Original: raw, Normalized: v}
	if v == "" || cfg == nil {
		return out
	}

	switch cfg.Type {
	case model.FieldDate:
		out.Normalized, out.Warnings = normalizeDate(v)
	case model.FieldBoolean:
		out.Normalized, out.Warnings = normalizeBool(v)
	case model.FieldNumber:
		out.Normalized, out.Warnings = normalizeNumber(v)
	case model.FieldIdentifier:
		width := cfg.Width
		if n.opts.IdentifierWidth > 0 {
			width = n.opts.IdentifierWidth
		}
		out.Normalized, out.Warnings = normalizeIdentifier(v, width)
	}
	return out
}

// Normalize renders raw according to cfg with default options.
func Normalize(raw string, cfg *model.FieldConfig) model.NormalizedValue {
	return New(Options{}).Normalize(raw, cfg)
}

func normalizeBool(v string) (string, []string) {
	key := strings.ToLower(v)
	switch {
	case trueTokens[key]:
		return True, nil
	case falseTokens[key]:
		return False, nil
	}
	return v, []string{"unrecognised yes/no value kept as is"}
}

func normalizeIdentifier(v string, width int) (string, []string) {
	var warns []string
	id := strings.TrimLeft(v, "'’`")
	if id != v {
		warns = append(warns, "leading quote removed")
	}
	id = strings.TrimSpace(ASCIIDigits(id))
	if width > 0 && len(id) < width && isDigits(id) {
		id = strings.Repeat("0", width-len(id)) + id
		warns = append(warns, "identifier zero-padded")
	}
	return id, warns
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
