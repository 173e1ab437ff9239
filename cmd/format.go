package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/crm-import/internal/model"
	"github.com/sells-group/crm-import/internal/review"
)

// formatSummary writes the session totals and the finding buckets to out.
func formatSummary(out io.Writer, s review.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Entity:\t%s\n", s.Entity)
	_, _ = fmt.Fprintf(w, "Rows:\t%d\n", s.TotalRows)
	_, _ = fmt.Fprintf(w, "  Valid:\t%d\n", s.ValidRows)
	_, _ = fmt.Fprintf(w, "  With errors:\t%d\n", s.ErrorRows)
	_, _ = fmt.Fprintf(w, "  With warnings:\t%d\n", s.WarningRows)
	_, _ = fmt.Fprintf(w, "  Approved:\t%d\n", s.ApprovedRows)
	_, _ = fmt.Fprintf(w, "Skipped empty:\t%d\n", s.SkippedRows)
	_ = w.Flush()

	writeBuckets(out, "Errors", s.Errors)
	writeBuckets(out, "Warnings", s.Warnings)
}

func writeBuckets(out io.Writer, title string, m map[string]int) {
	if len(m) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\n%s:\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, k := range review.Buckets(m) {
		_, _ = fmt.Fprintf(w, "  %d\t%s\n", m[k], k)
	}
	_ = w.Flush()
}

func formatPendingCities(out io.Writer, pending []model.CitySuggestion) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\tCITY\tSUGGESTIONS")
	_, _ = fmt.Fprintln(w, "---\t----\t-----------")
	for _, p := range pending {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", p.RowNumber, p.OriginalCity, strings.Join(p.Suggestions, ", "))
	}
	_ = w.Flush()
}

func formatFindings(out io.Writer, rows []model.ImportRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROW\tFIELD\tCODE\tVALUE\tMESSAGE")
	_, _ = fmt.Fprintln(w, "---\t-----\t----\t-----\t-------")
	for _, r := range rows {
		for _, f := range r.Errors {
			msg := f.Message
			if f.Suggestion != "" {
				msg += " (" + f.Suggestion + ")"
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.RowNumber, f.Field, f.Code, f.Value, msg)
		}
	}
	_ = w.Flush()
}

func formatImportsList(out io.Writer, runs []model.ImportRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tENTITY\tSOURCE\tROWS\tIMPORTED\tERRORS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t----\t--------\t------\t-------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.Entity,
			r.Source,
			r.TotalRows,
			r.Imported,
			r.ErrorRows,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatCities(out io.Writer, cities []model.City) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tCODE")
	_, _ = fmt.Fprintln(w, "----\t----")
	for _, c := range cities {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Code)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
