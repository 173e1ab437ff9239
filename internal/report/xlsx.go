package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/crm-import/internal/model"
)

// Sheet names of the exported workbook.
const (
	RowsSheet     = "rows"
	FindingsSheet = "findings"
)

// WriteXLSX writes a workbook with the rows (schema columns plus status and
// error summary) and a findings sheet.
func WriteXLSX(w io.Writer, entity model.EntityType, rows []model.ImportRow) error {
	f := xlsx.NewFile()

	rowSheet, err := f.AddSheet(RowsSheet)
	if err != nil {
		return eris.Wrap(err, "report: add rows sheet")
	}
	keys, labels := columnsFor(entity, rows)
	addRow(rowSheet, append([]string{"row"}, append(labels, "status", "errors")...))
	for i := range rows {
		r := &rows[i]
		cells := make([]string, 0, len(keys)+3)
		cells = append(cells, strconv.Itoa(r.RowNumber))
		for _, k := range keys {
			cells = append(cells, r.Data[k])
		}
		cells = append(cells, statusOf(r), joinMessages(r.Errors))
		addRow(rowSheet, cells)
	}

	findSheet, err := f.AddSheet(FindingsSheet)
	if err != nil {
		return eris.Wrap(err, "report: add findings sheet")
	}
	addRow(findSheet, findingColumns)
	for _, fd := range findings(rows) {
		addRow(findSheet, findingRecord(fd))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

// columnsFor returns the schema field keys present in any row, with their
// Arabic labels, in schema order.
func columnsFor(entity model.EntityType, rows []model.ImportRow) (keys, labels []string) {
	schema := model.SchemaFor(entity)
	if schema == nil {
		return nil, nil
	}
	for _, fc := range schema.Fields.Fields {
		if !anyHas(rows, fc.Key) {
			continue
		}
		keys = append(keys, fc.Key)
		label := fc.LabelAR
		if label == "" {
			label = fc.Label
		}
		labels = append(labels, label)
	}
	return keys, labels
}

func anyHas(rows []model.ImportRow, key string) bool {
	for _, r := range rows {
		if _, ok := r.Data[key]; ok {
			return true
		}
	}
	return false
}

func joinMessages(fs []model.Finding) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Key()
	}
	return strings.Join(parts, "; ")
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
