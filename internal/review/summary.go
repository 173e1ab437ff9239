package review

import (
	"sort"

	"github.com/sells-group/crm-import/internal/model"
)

// Filter selects a view over the rows. Zero value selects every row.
type Filter struct {
	ErrorsOnly   bool
	ApprovedOnly bool
	// Bucket restricts to rows carrying a finding with this "<field>: <message>" key.
	Bucket string
}

func (f Filter) match(r *model.ImportRow) bool {
	if f.ErrorsOnly && r.IsValid() {
		return false
	}
	if f.ApprovedOnly && !r.Approved {
		return false
	}
	if f.Bucket != "" && !hasBucket(r, f.Bucket) {
		return false
	}
	return true
}

func hasBucket(r *model.ImportRow, key string) bool {
	for _, fs := range [][]model.Finding{r.Errors, r.Warnings} {
		for _, f := range fs {
			if f.Key() == key {
				return true
			}
		}
	}
	return false
}

// Filter returns copies of the rows matching f in row-number order. It never
// mutates row state.
func (s *Session) Filter(f Filter) []model.ImportRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ImportRow, 0, len(s.rows))
	for _, row := range s.rows {
		if f.match(row) {
			out = append(out, row.Clone())
		}
	}
	return out
}

// Summary is the aggregate view of a session.
type Summary struct {
	SessionID    string           `json:"sessionId"`
	Entity       model.EntityType `json:"entity"`
	TotalRows    int              `json:"totalRows"`
	ValidRows    int              `json:"validRows"`
	ErrorRows    int              `json:"errorRows"`
	WarningRows  int              `json:"warningRows"`
	ApprovedRows int              `json:"approvedRows"`
	SkippedRows  int              `json:"skippedRows"`
	// Errors and Warnings count findings per "<field>: <message>" bucket.
	Errors   map[string]int `json:"errors"`
	Warnings map[string]int `json:"warnings"`
}

// Buckets returns the bucket keys of m sorted by descending count then key.
func Buckets(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Summary recomputes the aggregate view from the current rows.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{
		SessionID:   s.ID,
		Entity:      s.Entity,
		TotalRows:   len(s.rows),
		SkippedRows: s.SkippedRows,
		Errors:      make(map[string]int),
		Warnings:    make(map[string]int),
	}
	for _, row := range s.rows {
		if row.IsValid() {
			sum.ValidRows++
		} else {
			sum.ErrorRows++
		}
		if row.HasWarnings() {
			sum.WarningRows++
		}
		if row.Approved {
			sum.ApprovedRows++
		}
		for _, f := range row.Errors {
			sum.Errors[f.Key()]++
		}
		for _, f := range row.Warnings {
			sum.Warnings[f.Key()]++
		}
	}
	return sum
}
