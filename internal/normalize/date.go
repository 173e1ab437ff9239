package normalize

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical dd-mmm-yyyy rendering.
const DateLayout = "02-Jan-2006"

// Day-first layouts tried after the canonical one.
var dateLayouts = []string{
	"2-Jan-2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2-January-2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"2006-01-02",
	"2006/01/02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"02-Jan-06",
}

var arabicMonths = strings.NewReplacer(
	"يناير", "Jan", "فبراير", "Feb", "مارس", "Mar", "أبريل", "Apr", "ابريل", "Apr",
	"مايو", "May", "يونيو", "Jun", "يوليو", "Jul", "أغسطس", "Aug", "اغسطس", "Aug",
	"سبتمبر", "Sep", "أكتوبر", "Oct", "اكتوبر", "Oct", "نوفمبر", "Nov", "ديسمبر", "Dec",
)

// Excel stores dates as days since 1899-12-30.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate parses any accepted date spelling.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(arabicMonths.Replace(ASCIIDigits(s)))
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, ok := excelSerial(s); ok {
		return t, true
	}
	return time.Time{}, false
}

func excelSerial(s string) (time.Time, bool) {
	if len(s) != 5 || !isDigits(s) {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 20000 || n > 80000 {
		return time.Time{}, false
	}
	return excelEpoch.AddDate(0, 0, n), true
}

func normalizeDate(v string) (string, []string) {
	t, ok := ParseDate(v)
	if !ok {
		return v, []string{"unrecognised date format kept as is"}
	}
	out := t.Format(DateLayout)
	if out != v {
		return out, []string{"date reformatted to dd-mmm-yyyy"}
	}
	return out, nil
}
