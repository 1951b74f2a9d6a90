package interfaces

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	export "quarterhour-export/internal/export/domain"
)

const (
	// HeaderLead is the first header field of every grid file.
	HeaderLead = "MEASYM_MEASDD_MEASTYPE"
	// FieldSeparator separates fields; every line also ends with it.
	FieldSeparator = ";"
	// RowSeparator terminates lines.
	RowSeparator = "\n"
)

var (
	errHeaderWritten   = errors.New("csv grid writer: header already written")
	errHeaderMissing   = errors.New("csv grid writer: header not written")
	errColumnsMismatch = errors.New("csv grid writer: row width does not match header")
)

// CSVGridWriter writes the grid in the historical ';' format. Fields are
// never quoted. It records every POD that had an empty cell.
type CSVGridWriter struct {
	w           *bufio.Writer
	columns     int
	header      bool
	diagnostics *export.Diagnostics
	logger      *log.Logger
	trace       bool
}

// CSVOption configures the writer.
type CSVOption func(*CSVGridWriter)

// WithTrace logs every written row through logger.
func WithTrace(logger *log.Logger) CSVOption {
	return func(w *CSVGridWriter) {
		if logger != nil {
			w.logger = logger
			w.trace = true
		}
	}
}

// NewCSVGridWriter wraps out with a buffered grid writer.
func NewCSVGridWriter(out io.Writer, opts ...CSVOption) *CSVGridWriter {
	w := &CSVGridWriter{
		w:           bufio.NewWriter(out),
		diagnostics: export.NewDiagnostics(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteHeader writes "MEASYM_MEASDD_MEASTYPE;<pod1>;...;<podN>;".
func (w *CSVGridWriter) WriteHeader(columns export.ColumnSet) error {
	if w.header {
		return errHeaderWritten
	}
	fields := append([]string{HeaderLead}, columns.PODs()...)
	if err := w.writeLine(fields); err != nil {
		return err
	}
	w.columns = columns.Len()
	w.header = true
	return nil
}

// WriteDay writes the 96 rows of grid.
func (w *CSVGridWriter) WriteDay(grid export.DayGrid) error {
	if !w.header {
		return errHeaderMissing
	}
	fields := make([]string, 0, w.columns+1)
	for i, row := range grid.Rows {
		if len(row) != w.columns {
			return fmt.Errorf("%w: %s row %d has %d cells, header has %d", errColumnsMismatch, grid.Window, i+1, len(row), w.columns)
		}
		fields = append(fields[:0], grid.RowLabel(i))
		for j, cell := range row {
			if cell == "" {
				w.diagnostics.AddMissing(grid.Columns.At(j))
			}
			fields = append(fields, cell)
		}
		if err := w.writeLine(fields); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *CSVGridWriter) Flush() error {
	return w.w.Flush()
}

// Diagnostics returns the PODs seen with missing cells so far.
func (w *CSVGridWriter) Diagnostics() *export.Diagnostics {
	return w.diagnostics
}

func (w *CSVGridWriter) writeLine(fields []string) error {
	line := strings.Join(fields, FieldSeparator) + FieldSeparator
	if w.trace {
		w.logger.Printf("csv row: %s", line)
	}
	if _, err := w.w.WriteString(line + RowSeparator); err != nil {
		return fmt.Errorf("csv grid writer: %w", err)
	}
	return nil
}

// CSVFile is a grid writer bound to a file it owns.
type CSVFile struct {
	*CSVGridWriter
	file *os.File
	path string
}

// CreateCSVFile removes any file already at path and opens a new one.
func CreateCSVFile(path string, opts ...CSVOption) (*CSVFile, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove previous output: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &CSVFile{CSVGridWriter: NewCSVGridWriter(file, opts...), file: file, path: path}, nil
}

// Path returns the output path.
func (f *CSVFile) Path() string { return f.path }

// Close flushes buffered rows and closes the file.
func (f *CSVFile) Close() error {
	flushErr := f.Flush()
	closeErr := f.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
