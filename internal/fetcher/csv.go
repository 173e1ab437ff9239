// Package fetcher reads import sources (local files, HTTP and FTP) and parses
// CSV and XLSX content into header + numbered data rows.
package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ParseCSV reads comma-separated text into a Table.
//
// Lines starting with '#' are comments and do not consume a row number.
// Fields are single-line; a doubled quote inside a quoted field is unescaped.
// Input is UTF-8 with an optional BOM; bytes that are not valid UTF-8 are
// decoded as Windows-1256.
func ParseCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "csv: read input")
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}
	text = strings.TrimRight(text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyFile
	}

	var b tableBuilder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		cells, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		b.add(cells)
	}
	return b.table()
}

func parseLine(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	reader := csv.NewReader(strings.NewReader(line))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	record, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: parse line")
	}
	return record, nil
}

func decodeText(data []byte) (string, error) {
	utf16 := bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF})
	if !utf16 && !utf8.Valid(data) {
		out, err := charmap.Windows1256.NewDecoder().Bytes(data)
		if err != nil {
			return "", eris.Wrap(err, "csv: decode windows-1256")
		}
		return string(out), nil
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", eris.Wrap(err, "csv: decode utf-8")
	}
	return string(out), nil
}
