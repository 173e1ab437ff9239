package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-import/internal/model"
)

var findingColumns = []string{"row", "field", "severity", "code", "value", "message", "suggestion"}

// utf8BOM makes Excel open the CSV as UTF-8 so Arabic text survives.
const utf8BOM = "\ufeff"

// WriteFindingsCSV writes one line per finding.
func WriteFindingsCSV(w io.Writer, rows []model.ImportRow) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return eris.Wrap(err, "report: write bom")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(findingColumns); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, f := range findings(rows) {
		if err := cw.Write(findingRecord(f)); err != nil {
			return eris.Wrap(err, "report: write finding")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

func findingRecord(f model.Finding) []string {
	return []string{
		strconv.Itoa(f.Row),
		f.Field,
		string(f.Severity),
		f.Code,
		f.Value,
		f.Message,
		f.Suggestion,
	}
}
