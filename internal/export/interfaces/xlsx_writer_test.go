package interfaces

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestXLSXGridWriterMirrorsGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plant_energy.xlsx")
	w, err := NewXLSXGridWriter(path)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	columns, grid := testGrid(t, "20240101", []string{"PODA", "PODB"}, map[int][]string{
		0: {"9.0_0", ""},
	})
	if err := w.WriteHeader(columns); err != nil {
		t.Fatalf("header: %v", err)
	}
	if err := w.WriteDay(grid); err != nil {
		t.Fatalf("day: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	header, err := f.GetCellValue(xlsxSheet, "A1")
	if err != nil {
		t.Fatalf("A1: %v", err)
	}
	if header != HeaderLead {
		t.Fatalf("A1 = %q", header)
	}
	pod, _ := f.GetCellValue(xlsxSheet, "C1")
	if pod != "PODB" {
		t.Fatalf("C1 = %q", pod)
	}
	label, _ := f.GetCellValue(xlsxSheet, "A2")
	value, _ := f.GetCellValue(xlsxSheet, "B2")
	empty, _ := f.GetCellValue(xlsxSheet, "C2")
	if label != "2024-01-01 00:00" || value != "9.0_0" || empty != "" {
		t.Fatalf("row 2 = %q %q %q", label, value, empty)
	}
	last, _ := f.GetCellValue(xlsxSheet, "A97")
	if last != "2024-01-01 23:45" {
		t.Fatalf("A97 = %q", last)
	}
}
