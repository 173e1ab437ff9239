package model

import (
	"encoding/json"
	"time"
)

// ImportRow is one parsed, non-empty data row under review.
type ImportRow struct {
	RowNumber int               `json:"rowNumber"`
	Data      map[string]string `json:"data"`
	Errors    []Finding         `json:"errors"`
	Warnings  []Finding         `json:"warnings"`
	Approved  bool              `json:"approved"`
}

// IsValid reports whether the row carries no error findings.
func (r *ImportRow) IsValid() bool {
	return len(r.Errors) == 0
}

// HasWarnings reports whether the row carries any warning findings.
func (r *ImportRow) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Clone returns a deep copy safe to hand out of a session.
func (r *ImportRow) Clone() ImportRow {
	c := ImportRow{
		RowNumber: r.RowNumber,
		Data:      make(map[string]string, len(r.Data)),
		Errors:    append([]Finding(nil), r.Errors...),
		Warnings:  append([]Finding(nil), r.Warnings...),
		Approved:  r.Approved,
	}
	for k, v := range r.Data {
		c.Data[k] = v
	}
	return c
}

// MarshalJSON adds the derived isValid flag.
func (r ImportRow) MarshalJSON() ([]byte, error) {
	type alias ImportRow
	errs, warns := r.Errors, r.Warnings
	if errs == nil {
		errs = []Finding{}
	}
	if warns == nil {
		warns = []Finding{}
	}
	a := alias(r)
	a.Errors, a.Warnings = errs, warns
	return json.Marshal(struct {
		alias
		IsValid bool `json:"isValid"`
	}{alias: a, IsValid: len(r.Errors) == 0})
}

// CitySuggestion is a pending city resolution for one row cell.
type CitySuggestion struct {
	OriginalCity  string   `json:"originalCity"`
	SuggestedCity string   `json:"suggestedCity,omitempty"`
	Suggestions   []string `json:"suggestions,omitempty"`
	RowNumber     int      `json:"rowNumber"`
	FieldName     string   `json:"fieldName"`
}

// ImportResults is the commit payload handed to persistence.
type ImportResults struct {
	TotalRows      int                 `json:"totalRows"`
	SuccessfulRows int                 `json:"successfulRows"`
	ErrorRows      int                 `json:"errorRows"`
	WarningRows    int                 `json:"warningRows"`
	ImportedData   []map[string]string `json:"importedData"`
}

// ImportRun records one committed import.
type ImportRun struct {
	ID          string     `json:"id"`
	Entity      EntityType `json:"entity"`
	Source      string     `json:"source"`
	TotalRows   int        `json:"total_rows"`
	Imported    int        `json:"imported"`
	ErrorRows   int        `json:"error_rows"`
	WarningRows int        `json:"warning_rows"`
	SkippedRows int        `json:"skipped_rows"`
	CreatedAt   time.Time  `json:"created_at"`
	// IDWidth is the zero-pad width for company IDs the sink generates.
	IDWidth int `json:"-"`
}
