package spreadsheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is the parsed first sheet of a sales report: the ordered header
// row plus data rows keyed by header name. Cells missing from short rows
// come back as empty strings.
type Table struct {
	Headers []string
	Rows    []map[string]string
}

// Read opens path and parses it based on its extension. Only the first
// sheet of a workbook is read.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Read: open file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return ReadWorkbook(f)
	case ".csv", ".txt":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("Read: unsupported spreadsheet format %q", ext)
	}
}

// ReadWorkbook parses an Office Open XML workbook, first sheet only.
// Cell values arrive formatted, so date-styled cells come back as the
// displayed date string and bare serial numbers as digit strings.
func ReadWorkbook(r io.Reader) (*Table, error) {
	xl, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ReadWorkbook: open workbook: %w", err)
	}
	defer xl.Close()

	sheetName := xl.GetSheetName(0)
	rawRows, err := xl.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("ReadWorkbook: read sheet %q: %w", sheetName, err)
	}

	return tableFrom(rawRows), nil
}

// ReadCSV parses comma-separated data. Ragged rows are tolerated; short
// rows pad with empty strings.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rawRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: parse: %w", err)
	}

	return tableFrom(rawRows), nil
}

// tableFrom turns raw rows into a Table: first row is the header, blank
// rows are dropped, and columns with an empty header name are ignored.
func tableFrom(rawRows [][]string) *Table {
	t := &Table{}
	if len(rawRows) == 0 {
		return t
	}

	for _, h := range rawRows[0] {
		t.Headers = append(t.Headers, strings.TrimSpace(h))
	}

	for _, raw := range rawRows[1:] {
		if isBlank(raw) {
			continue
		}
		row := make(map[string]string, len(t.Headers))
		for i, header := range t.Headers {
			if header == "" {
				continue
			}
			if i < len(raw) {
				row[header] = raw[i]
			} else {
				row[header] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
