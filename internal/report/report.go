// Package report renders review sessions for export: the full JSON view,
// a flat findings CSV, and an XLSX workbook with the rows annotated.
package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/review"
)

// Format selects an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts json, csv or xlsx, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", eris.Errorf("report: unknown format %q", s)
}

// ContentType is the HTTP media type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Report is a point-in-time snapshot of a session.
type Report struct {
	Source  string                 `json:"source"`
	Summary review.Summary         `json:"summary"`
	Rows    []model.ImportRow      `json:"rows"`
	Cities  []model.CitySuggestion `json:"pendingCities"`
}

// Build snapshots s.
func Build(s *review.Session) *Report {
	cities := s.PendingCities()
	if cities == nil {
		cities = []model.CitySuggestion{}
	}
	return &Report{
		Source:  s.Source,
		Summary: s.Summary(),
		Rows:    s.Rows(),
		Cities:  cities,
	}
}

// Write encodes rep to w in format f.
func Write(w io.Writer, f Format, rep *Report) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, rep)
	case FormatCSV:
		return WriteFindingsCSV(w, rep.Rows)
	case FormatXLSX:
		return WriteXLSX(w, rep.Summary.Entity, rep.Rows)
	}
	return eris.Errorf("report: unknown format %q", f)
}

// WriteJSON writes rep as indented JSON.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rep); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

// findings flattens the errors then warnings of rows in row order.
func findings(rows []model.ImportRow) []model.Finding {
	var out []model.Finding
	for _, r := range rows {
		out = append(out, r.Errors...)
		out = append(out, r.Warnings...)
	}
	return out
}

func statusOf(r *model.ImportRow) string {
	return string(review.StateOf(r))
}
