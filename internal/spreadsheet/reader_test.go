package spreadsheet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadCSV(t *testing.T) {
	input := "Date,Item,Total\n2024-01-05,Silver Ring,19.99\n2024-01-06,Gold Chain,120\n"

	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	wantHeaders := []string{"Date", "Item", "Total"}
	if len(table.Headers) != len(wantHeaders) {
		t.Fatalf("Expected %d headers, got %d", len(wantHeaders), len(table.Headers))
	}
	for i, h := range wantHeaders {
		if table.Headers[i] != h {
			t.Errorf("Header %d = %q, want %q", i, table.Headers[i], h)
		}
	}

	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Item"] != "Silver Ring" {
		t.Errorf("Expected 'Silver Ring', got %q", table.Rows[0]["Item"])
	}
	if table.Rows[1]["Total"] != "120" {
		t.Errorf("Expected '120', got %q", table.Rows[1]["Total"])
	}
}

func TestReadCSV_RaggedRows(t *testing.T) {
	input := "Date,Item,Total\n2024-01-05,Ring\n2024-01-06,Chain,120,extra\n"

	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Total"] != "" {
		t.Errorf("Expected empty Total for short row, got %q", table.Rows[0]["Total"])
	}
	if table.Rows[1]["Total"] != "120" {
		t.Errorf("Expected '120', got %q", table.Rows[1]["Total"])
	}
}

func TestReadCSV_BlankRowsDropped(t *testing.T) {
	input := "Date,Item,Total\n2024-01-05,Ring,10\n,,\n\n2024-01-06,Chain,20\n"

	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	if len(table.Rows) != 2 {
		t.Errorf("Expected blank rows dropped, got %d rows", len(table.Rows))
	}
}

func TestReadCSV_EmptyHeaderColumnIgnored(t *testing.T) {
	input := "Date,,Total\n2024-01-05,stray,10\n"

	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	if len(table.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(table.Rows))
	}
	if _, ok := table.Rows[0][""]; ok {
		t.Error("Expected empty-header column to be dropped from row maps")
	}
	if table.Rows[0]["Total"] != "10" {
		t.Errorf("Expected '10', got %q", table.Rows[0]["Total"])
	}
}

func TestReadCSV_HeaderOnly(t *testing.T) {
	table, err := ReadCSV(strings.NewReader("Date,Item,Total\n"))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("Expected 0 rows, got %d", len(table.Rows))
	}
	if len(table.Headers) != 3 {
		t.Errorf("Expected 3 headers, got %d", len(table.Headers))
	}
}

func TestReadWorkbook(t *testing.T) {
	xl := excelize.NewFile()
	sheet := xl.GetSheetName(0)
	cells := map[string]interface{}{
		"A1": "Date", "B1": "Item", "C1": "Total",
		"A2": "2024-01-05", "B2": "Silver Ring", "C2": 19.99,
		"A3": "2024-01-06", "B3": "Gold Chain", "C3": 120,
	}
	for ref, val := range cells {
		if err := xl.SetCellValue(sheet, ref, val); err != nil {
			t.Fatalf("SetCellValue(%s) failed: %v", ref, err)
		}
	}
	buf, err := xl.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer failed: %v", err)
	}

	table, err := ReadWorkbook(buf)
	if err != nil {
		t.Fatalf("ReadWorkbook failed: %v", err)
	}

	if len(table.Headers) != 3 || table.Headers[1] != "Item" {
		t.Fatalf("Unexpected headers: %v", table.Headers)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["Item"] != "Silver Ring" {
		t.Errorf("Expected 'Silver Ring', got %q", table.Rows[0]["Item"])
	}
	if table.Rows[1]["Total"] != "120" {
		t.Errorf("Expected '120', got %q", table.Rows[1]["Total"])
	}
}

func TestRead_DispatchesByExtension(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "report.csv")
	if err := os.WriteFile(csvPath, []byte("Date,Item,Total\n2024-01-05,Ring,10\n"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	table, err := Read(csvPath)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Errorf("Expected 1 row, got %d", len(table.Rows))
	}
}

func TestRead_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Read(path); err == nil {
		t.Error("Expected error for unsupported format, got nil")
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}
