package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestParseCSV_Basic(t *testing.T) {
	input := "name,phone,city\nشركة أ,0501234567,الرياض\nشركة ب,0551234567,جدة\n"
	tbl, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "phone", "city"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, RawRow{Number: 2, Cells: []string{"شركة أ", "0501234567", "الرياض"}}, tbl.Rows[0])
	assert.Equal(t, 3, tbl.Rows[1].Number)
	assert.Zero(t, tbl.SkippedEmpty)
}

func TestParseCSV_StripsBOM(t *testing.T) {
	input := "\xEF\xBB\xBFاسم الشركة*,المدينة*\nشركة,الرياض\n"
	tbl, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "اسم الشركة*", tbl.Header[0])
}

func TestParseCSV_CommentLines(t *testing.T) {
	input := "# قالب استيراد الشركات\n#generated\nname,city\n# note inside data\nA,جدة\n"
	tbl, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, tbl.Header)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, 2, tbl.Rows[0].Number)
}

func TestParseCSV_QuotedFields(t *testing.T) {
	input := "name,address\n\"Acme, Ltd\",\"He said \"\"hi\"\"\"\n"
	tbl, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"Acme, Ltd", `He said "hi"`}, tbl.Rows[0].Cells)
}

func TestParseCSV_EmptyRowsKeepNumbering(t *testing.T) {
	input := "name,city\r\nA,جدة\r\n , \r\n\r\nB,الرياض\r\n"
	tbl, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, 2, tbl.Rows[0].Number)
	assert.Equal(t, 5, tbl.Rows[1].Number)
	assert.Equal(t, 2, tbl.SkippedEmpty)
	assert.Equal(t, tbl.DataRowCount()-len(tbl.Rows), tbl.SkippedEmpty)
}

func TestParseCSV_TrimsCells(t *testing.T) {
	tbl, err := ParseCSV(strings.NewReader("  name , city \n  A  ,  جدة  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, tbl.Header)
	assert.Equal(t, []string{"A", "جدة"}, tbl.Rows[0].Cells)
}

func TestParseCSV_RaggedRows(t *testing.T) {
	tbl, err := ParseCSV(strings.NewReader("a,b,c\n1\n1,2,3,4\n"))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"1"}, tbl.Rows[0].Cells)
	assert.Len(t, tbl.Rows[1].Cells, 4)
}

func TestParseCSV_Windows1256Fallback(t *testing.T) {
	enc, err := charmap.Windows1256.NewEncoder().String("name,city\nA,جدة\n")
	require.NoError(t, err)

	tbl, err := ParseCSV(strings.NewReader(enc))
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, "جدة", tbl.Rows[0].Cells[1])
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmptyFile},
		{"whitespace only", " \n\n", ErrEmptyFile},
		{"comments only", "# title\n# another\n", ErrEmptyFile},
		{"header only", "name,city\n", ErrNoDataRows},
		{"header and empty rows", "name,city\n,\n \n", ErrNoDataRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
