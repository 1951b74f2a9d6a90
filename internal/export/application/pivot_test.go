package application

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	export "quarterhour-export/internal/export/domain"
	"quarterhour-export/internal/export/infrastructure/memory"
)

func discardLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func testSelection(t *testing.T, start, end string) export.Selection {
	t.Helper()
	from, err := export.ParseDayKey(start)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	to, err := export.ParseDayKey(end)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	return export.Selection{Magnitude: "energy", FileName: "plant", Start: from, End: to}
}

func mustColumns(t *testing.T, pods ...string) export.ColumnSet {
	t.Helper()
	cols, err := export.NewColumnSet(pods)
	if err != nil {
		t.Fatalf("columns: %v", err)
	}
	return cols
}

func TestPivotZeroPlaceholderSuperseded(t *testing.T) {
	src := memory.NewSource()
	src.Add("plant_energy",
		export.MeasurementTuple{DayKey: "20240101", Slot: 1, POD: "PODX", MeasType: "0", Value: 0},
		export.MeasurementTuple{DayKey: "20240101", Slot: 1, POD: "PODX", MeasType: "1", Value: 12.5},
	)
	builder, err := NewPivotBuilder(src, discardLogger())
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	sel := testSelection(t, "20240101", "20240102")
	grid, stats, err := builder.Build(context.Background(), sel, export.NewDayWindow(sel.Start), mustColumns(t, "PODX"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := grid.Rows[0][0]; got != "12.5_1" {
		t.Fatalf("cell = %q, want 12.5_1", got)
	}
	if stats.Replaced != 1 || stats.Anomalies != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestPivotFirstReadingWinsAndFlagsDuplicate(t *testing.T) {
	src := memory.NewSource()
	src.Add("plant_energy",
		export.MeasurementTuple{DayKey: "20240101", Slot: 1, POD: "PODX", MeasType: "0", Value: 9},
		export.MeasurementTuple{DayKey: "20240101", Slot: 1, POD: "PODX", MeasType: "1", Value: 12.5},
	)
	var anomalies []export.DuplicateValueAnomaly
	builder, err := NewPivotBuilder(src, discardLogger(), WithAnomalyHandler(func(a export.DuplicateValueAnomaly) {
		anomalies = append(anomalies, a)
	}))
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	sel := testSelection(t, "20240101", "20240102")
	grid, stats, err := builder.Build(context.Background(), sel, export.NewDayWindow(sel.Start), mustColumns(t, "PODX"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := grid.Rows[0][0]; got != "9.0_0" {
		t.Fatalf("cell = %q, want 9.0_0", got)
	}
	if stats.Anomalies != 1 || len(anomalies) != 1 {
		t.Fatalf("expected one anomaly, stats=%+v recorded=%d", stats, len(anomalies))
	}
	a := anomalies[0]
	if a.Key.POD != "PODX" || a.Key.Slot != 1 || a.Discarded.MeasType != "1" || a.Stored.Value != 9 {
		t.Fatalf("anomaly = %+v", a)
	}
}

func TestPivotDenseGridAndMissingCells(t *testing.T) {
	src := memory.NewSource()
	src.Add("plant_energy",
		export.MeasurementTuple{DayKey: "20240101", Slot: 96, POD: "B", MeasType: "0", Value: 1.5},
		export.MeasurementTuple{DayKey: "20240101", Slot: 2, POD: "A", MeasType: "0", Value: 2},
		export.MeasurementTuple{DayKey: "20240101", Slot: 2, POD: "OTHER", MeasType: "0", Value: 7},
	)
	builder, err := NewPivotBuilder(src, discardLogger())
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	sel := testSelection(t, "20240101", "20240102")
	grid, _, err := builder.Build(context.Background(), sel, export.NewDayWindow(sel.Start), mustColumns(t, "A", "B"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(grid.Rows) != export.SlotsPerDay {
		t.Fatalf("rows = %d", len(grid.Rows))
	}
	for i, row := range grid.Rows {
		if len(row) != 2 {
			t.Fatalf("row %d width = %d", i, len(row))
		}
	}
	if grid.Rows[1][0] != "2.0_0" || grid.Rows[95][1] != "1.5_0" {
		t.Fatalf("cells = %q %q", grid.Rows[1][0], grid.Rows[95][1])
	}
	if grid.Rows[0][0] != "" || grid.Rows[1][1] != "" {
		t.Fatalf("expected empty cells")
	}
	if grid.RowLabel(95) != "2024-01-01 23:45" {
		t.Fatalf("row label = %q", grid.RowLabel(95))
	}
}

func TestPivotResetsBetweenWindows(t *testing.T) {
	src := memory.NewSource()
	src.Add("plant_energy",
		export.MeasurementTuple{DayKey: "20240101", Slot: 1, POD: "A", MeasType: "0", Value: 5},
	)
	builder, err := NewPivotBuilder(src, discardLogger())
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	sel := testSelection(t, "20240101", "20240103")
	cols := mustColumns(t, "A")
	if _, _, err := builder.Build(context.Background(), sel, export.NewDayWindow(sel.Start), cols); err != nil {
		t.Fatalf("build day 1: %v", err)
	}
	if len(builder.cells) != 1 {
		t.Fatalf("cells after day 1 = %d", len(builder.cells))
	}
	grid, _, err := builder.Build(context.Background(), sel, export.NewDayWindow(sel.Start.AddDate(0, 0, 1)), cols)
	if err != nil {
		t.Fatalf("build day 2: %v", err)
	}
	if len(builder.cells) != 0 {
		t.Fatalf("cells leaked across windows: %d", len(builder.cells))
	}
	if grid.Rows[0][0] != "" {
		t.Fatalf("day 2 cell = %q", grid.Rows[0][0])
	}
}

type failingSource struct {
	*memory.Source
	err error
}

func (f *failingSource) StreamMeasurements(context.Context, export.Selection, string, string, []string, func(export.MeasurementTuple) error) error {
	return f.err
}

func TestPivotPropagatesSourceError(t *testing.T) {
	boom := errors.New("boom")
	src := &failingSource{Source: memory.NewSource(), err: boom}
	builder, err := NewPivotBuilder(src, discardLogger())
	if err != nil {
		t.Fatalf("new builder: %v", err)
	}
	sel := testSelection(t, "20240101", "20240102")
	if _, _, err := builder.Build(context.Background(), sel, export.NewDayWindow(sel.Start), mustColumns(t, "A")); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
