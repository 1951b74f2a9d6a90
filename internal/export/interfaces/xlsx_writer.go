package interfaces

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	export "quarterhour-export/internal/export/domain"
)

const xlsxSheet = "grid"

// XLSXGridWriter mirrors the CSV grid into a single-sheet workbook using the
// excelize stream writer, so rows are not kept in memory.
type XLSXGridWriter struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	path   string
	row    int
}

// NewXLSXGridWriter prepares a workbook saved to path on Close.
func NewXLSXGridWriter(path string) (*XLSXGridWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx grid writer: %w", err)
	}
	stream, err := f.NewStreamWriter(xlsxSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("xlsx grid writer: %w", err)
	}
	return &XLSXGridWriter{file: f, stream: stream, path: path}, nil
}

// WriteHeader writes the header row.
func (w *XLSXGridWriter) WriteHeader(columns export.ColumnSet) error {
	if columns.Len()+1 > excelize.MaxColumns {
		return fmt.Errorf("xlsx grid writer: %d columns exceed sheet limit", columns.Len()+1)
	}
	values := make([]interface{}, 0, columns.Len()+1)
	values = append(values, HeaderLead)
	for _, pod := range columns.PODs() {
		values = append(values, pod)
	}
	return w.writeRow(values)
}

// WriteDay writes the rows of one day; missing cells stay blank.
func (w *XLSXGridWriter) WriteDay(grid export.DayGrid) error {
	for i, row := range grid.Rows {
		values := make([]interface{}, 0, len(row)+1)
		values = append(values, grid.RowLabel(i))
		for _, cell := range row {
			if cell == "" {
				values = append(values, nil)
				continue
			}
			values = append(values, cell)
		}
		if err := w.writeRow(values); err != nil {
			return err
		}
	}
	return nil
}

func (w *XLSXGridWriter) writeRow(values []interface{}) error {
	w.row++
	if w.row > excelize.TotalRows {
		return fmt.Errorf("xlsx grid writer: row %d exceeds sheet limit", w.row)
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.stream.SetRow(cell, values); err != nil {
		return fmt.Errorf("xlsx grid writer: %w", err)
	}
	return nil
}

// Close flushes the stream and saves the workbook.
func (w *XLSXGridWriter) Close() error {
	defer w.file.Close()
	if err := w.stream.Flush(); err != nil {
		return fmt.Errorf("xlsx grid writer: %w", err)
	}
	if err := w.file.SaveAs(w.path); err != nil {
		return fmt.Errorf("xlsx grid writer: %w", err)
	}
	return nil
}
