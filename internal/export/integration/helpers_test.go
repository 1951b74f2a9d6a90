package integration_test

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"quarterhour-export/internal/export/application"
	export "quarterhour-export/internal/export/domain"
	"quarterhour-export/internal/export/interfaces"
)

func testSelection(t *testing.T, fileName string) export.Selection {
	t.Helper()
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return export.Selection{Magnitude: "energy", FileName: fileName, Start: start, End: start.AddDate(0, 0, 2)}
}

// sampleTuples covers a superseded zero placeholder, a duplicate anomaly and
// the last slot of the second day.
func sampleTuples() []export.MeasurementTuple {
	return []export.MeasurementTuple{
		{DayKey: "20240101", Slot: 1, POD: "PODX", MeasType: "0", Value: 0},
		{DayKey: "20240101", Slot: 1, POD: "PODX", MeasType: "1", Value: 12.5},
		{DayKey: "20240101", Slot: 1, POD: "PODA", MeasType: "0", Value: 9},
		{DayKey: "20240101", Slot: 1, POD: "PODA", MeasType: "1", Value: 3},
		{DayKey: "20240102", Slot: 96, POD: "PODA", MeasType: "0", Value: 4.25},
		{DayKey: "20240103", Slot: 1, POD: "PODZ", MeasType: "0", Value: 1},
	}
}

func runExport(t *testing.T, source application.MeasurementSource, sel export.Selection) (application.RunSummary, []string) {
	t.Helper()
	var out bytes.Buffer
	writer := interfaces.NewCSVGridWriter(&out)
	exporter, err := application.NewExporter(source, writer, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	summary, err := exporter.Run(context.Background(), sel)
	if err != nil {
		t.Fatalf("run export: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return summary, strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
}

func assertSampleGrid(t *testing.T, summary application.RunSummary, lines []string) {
	t.Helper()
	if summary.Days != 2 || summary.Anomalies != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(lines) != 1+2*export.SlotsPerDay {
		t.Fatalf("expected %d lines, got %d", 1+2*export.SlotsPerDay, len(lines))
	}
	if lines[0] != "MEASYM_MEASDD_MEASTYPE;PODA;PODX;" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "2024-01-01 00:00;9.0_0;12.5_1;" {
		t.Fatalf("first row = %q", lines[1])
	}
	if lines[192] != "2024-01-02 23:45;4.25_0;;" {
		t.Fatalf("last row = %q", lines[192])
	}
}
