package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrEmptyFile is returned when a source has no header row.
	ErrEmptyFile = eris.New("fetcher: file is empty")
	// ErrNoDataRows is returned when a source has a header but no non-empty data rows.
	ErrNoDataRows = eris.New("fetcher: file has no data rows")
)

// RawRow is one data row as parsed, before mapping.
type RawRow struct {
	// Number is the 1-based line position counting the header as row 1.
	Number int
	Cells  []string
}

// Table is a parsed import source: the header row plus its non-empty data rows.
type Table struct {
	Header       []string
	Rows         []RawRow
	SkippedEmpty int
}

// DataRowCount is the number of raw data rows including the skipped empty ones.
func (t *Table) DataRowCount() int {
	return len(t.Rows) + t.SkippedEmpty
}

// tableBuilder applies the shared row rules for CSV and XLSX sources:
// the first non-empty row is the header, data rows are numbered from 2
// and all-empty data rows are counted but not kept.
type tableBuilder struct {
	t    Table
	next int
}

func (b *tableBuilder) add(cells []string) {
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	empty := allEmpty(cells)
	if b.t.Header == nil {
		if empty {
			return
		}
		b.t.Header = cells
		b.next = 2
		return
	}
	n := b.next
	b.next++
	if empty {
		b.t.SkippedEmpty++
		return
	}
	b.t.Rows = append(b.t.Rows, RawRow{Number: n, Cells: cells})
}

func (b *tableBuilder) table() (*Table, error) {
	if b.t.Header == nil {
		return nil, ErrEmptyFile
	}
	if len(b.t.Rows) == 0 {
		return nil, ErrNoDataRows
	}
	t := b.t
	return &t, nil
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

func isComment(cells []string) bool {
	return len(cells) > 0 && strings.HasPrefix(strings.TrimSpace(cells[0]), "#")
}
