package interfaces

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"

	"quarterhour-export/internal/export/application"
)

// BuildRunReportPDF renders a one-page summary of an export run.
func BuildRunReportPDF(summary application.RunSummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Quarter-hour Export Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Selection: %s", summary.Selection.Name()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Range: %s - %s (exclusive)", summary.Selection.StartKey(), summary.Selection.EndKey()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", summary.StartedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Duration: %s", summary.Duration.Round(time.Millisecond)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("PODs: %d", summary.Columns))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Days: %d", summary.Days))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Rows: %d", summary.Rows))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Tuples read: %d", summary.Tuples))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Duplicate anomalies: %d", summary.Anomalies))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Missing cells: %d", summary.MissingCells))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(120, 6, "POD with missing values", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	if len(summary.MissingPODs) == 0 {
		pdf.CellFormat(120, 6, "none", "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
	for _, pod := range summary.MissingPODs {
		pdf.CellFormat(120, 6, pod, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRunReportPDF renders the report to path.
func WriteRunReportPDF(path string, summary application.RunSummary) error {
	data, err := BuildRunReportPDF(summary)
	if err != nil {
		return fmt.Errorf("run report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
