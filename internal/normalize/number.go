package normalize

import (
	"strconv"
	"strings"
)

// ParseNumber parses a normalized numeric rendering.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func normalizeNumber(v string) (string, []string) {
	s := strings.ReplaceAll(ASCIIDigits(v), "٫", ".")

	var b strings.Builder
	var sawDigit, sawDot, negative bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sawDigit = true
			b.WriteRune(r)
		case r == '.' && !sawDot:
			sawDot = true
			b.WriteRune(r)
		case r == '-' && !sawDigit && !sawDot && !negative:
			negative = true
		}
	}
	if !sawDigit {
		return v, []string{"no numeric value found, kept as is"}
	}

	out := strings.TrimSuffix(b.String(), ".")
	if negative {
		out = "-" + out
	}
	if out != v {
		return out, []string{"non-numeric characters removed"}
	}
	return out, nil
}
