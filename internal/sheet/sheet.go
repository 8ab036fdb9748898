// Package sheet reads recipient spreadsheets (.xlsx and .csv) into a
// normalized table of header-keyed rows.
package sheet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrUnsupportedFormat is returned for file extensions no reader handles.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Table is a loaded worksheet. Every row holds a value for every header;
// missing cells are normalized to the empty string.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns the values of header in row order.
func (t *Table) Column(header string) []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[header]
	}
	return out
}

// HasColumn reports whether header is one of the table's headers.
func (t *Table) HasColumn(header string) bool {
	for _, h := range t.Headers {
		if h == header {
			return true
		}
	}
	return false
}

// Preview returns up to n rows projected onto the given columns.
func (t *Table) Preview(n int, columns ...string) [][]string {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([][]string, 0, n)
	for _, r := range t.Rows[:n] {
		vals := make([]string, len(columns))
		for i, c := range columns {
			vals[i] = r[c]
		}
		out = append(out, vals)
	}
	return out
}

// Loader loads a worksheet from a file.
type Loader interface {
	Load(path, sheetName string) (*Table, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path, sheetName string) (*Table, error)

// Load calls f(path, sheetName).
func (f LoaderFunc) Load(path, sheetName string) (*Table, error) {
	return f(path, sheetName)
}

// FileLoader dispatches on the file extension.
type FileLoader struct{}

// Load implements Loader.
func (FileLoader) Load(path, sheetName string) (*Table, error) {
	return Load(path, sheetName)
}

// Load reads the named sheet of the spreadsheet at path. For workbooks an
// empty sheetName selects the first sheet; CSV files ignore sheetName.
func Load(path, sheetName string) (*Table, error) {
	var (
		records [][]string
		err     error
	)

	switch kind(path) {
	case kindXLSX:
		records, err = readXLSX(path, sheetName)
	case kindCSV:
		records, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return newTable(records), nil
}

// Sheets lists the worksheet names of a workbook. CSV files report a
// single unnamed sheet.
func Sheets(path string) ([]string, error) {
	switch kind(path) {
	case kindXLSX:
		return xlsxSheets(path)
	case kindCSV:
		return []string{""}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Headers returns the normalized header row of a sheet. The whole sheet
// is read to apply the same normalization as Load.
func Headers(path, sheetName string) ([]string, error) {
	t, err := Load(path, sheetName)
	if err != nil {
		return nil, err
	}
	return t.Headers, nil
}

type fileKind int

const (
	kindUnknown fileKind = iota
	kindXLSX
	kindCSV
)

func kind(path string) fileKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return kindXLSX
	case ".csv", ".tsv":
		return kindCSV
	default:
		return kindUnknown
	}
}

// newTable builds a table from raw records whose first record is the
// header row.
func newTable(records [][]string) *Table {
	// Drop trailing rows with no content.
	for len(records) > 1 && blank(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) == 0 {
		return &Table{}
	}

	headers := normalizeHeaders(records[0])

	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Headers: headers, Rows: rows}
}

// normalizeHeaders trims header cells, names blank ones "Unnamed: N" and
// suffixes duplicates with ".1", ".2", ...
func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	used := make(map[string]bool, len(raw))

	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		headers[i] = name
	}

	return headers
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
