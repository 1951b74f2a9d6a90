package application

import (
	"context"
	"errors"
	"fmt"
	"log"

	export "quarterhour-export/internal/export/domain"
)

// PivotStats counts what happened to the tuples of one window.
type PivotStats struct {
	Tuples    int
	Stored    int
	Replaced  int
	Anomalies int
	Ignored   int
}

// PivotBuilder turns the tuple stream of one day into a dense grid.
// The cell map is owned by the builder and reset at the start of each Build.
type PivotBuilder struct {
	source    MeasurementSource
	policy    export.DuplicatePolicy
	logger    *log.Logger
	onAnomaly func(export.DuplicateValueAnomaly)
	cells     map[export.CellKey]export.Cell
}

// PivotOption configures the builder.
type PivotOption func(*PivotBuilder)

// WithDuplicatePolicy overrides the default duplicate policy.
func WithDuplicatePolicy(policy export.DuplicatePolicy) PivotOption {
	return func(b *PivotBuilder) {
		if b != nil {
			b.policy = policy
		}
	}
}

// WithAnomalyHandler registers a callback invoked for every anomaly.
func WithAnomalyHandler(fn func(export.DuplicateValueAnomaly)) PivotOption {
	return func(b *PivotBuilder) {
		if b != nil {
			b.onAnomaly = fn
		}
	}
}

// NewPivotBuilder constructs a builder.
func NewPivotBuilder(source MeasurementSource, logger *log.Logger, opts ...PivotOption) (*PivotBuilder, error) {
	if source == nil {
		return nil, errors.New("pivot builder: nil source")
	}
	if logger == nil {
		logger = log.Default()
	}
	b := &PivotBuilder{
		source: source,
		policy: export.DefaultDuplicatePolicy,
		logger: logger,
		cells:  make(map[export.CellKey]export.Cell),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Build fetches the tuples of window restricted to columns and returns the
// 96 x N grid for that day.
func (b *PivotBuilder) Build(ctx context.Context, sel export.Selection, window export.DayWindow, columns export.ColumnSet) (export.DayGrid, PivotStats, error) {
	b.reset()
	var stats PivotStats
	err := b.source.StreamMeasurements(ctx, sel, window.MinDayKey, window.MaxDayKey, columns.PODs(), func(tuple export.MeasurementTuple) error {
		b.add(tuple, &stats)
		return nil
	})
	if err != nil {
		return export.DayGrid{}, stats, fmt.Errorf("measurements %s: %w", window, err)
	}
	return b.grid(window, columns), stats, nil
}

func (b *PivotBuilder) reset() {
	clear(b.cells)
}

func (b *PivotBuilder) add(tuple export.MeasurementTuple, stats *PivotStats) {
	stats.Tuples++
	key := tuple.Key()
	stored, ok := b.cells[key]
	candidate := tuple.Cell()
	switch b.policy.Resolve(stored, ok, candidate) {
	case export.DecisionStore:
		b.cells[key] = candidate
		stats.Stored++
	case export.DecisionReplace:
		b.cells[key] = candidate
		stats.Replaced++
	case export.DecisionAnomaly:
		stats.Anomalies++
		anomaly := export.DuplicateValueAnomaly{Key: key, Stored: stored, Discarded: candidate}
		b.logger.Printf("pivot warning: %s", anomaly)
		if b.onAnomaly != nil {
			b.onAnomaly(anomaly)
		}
	case export.DecisionIgnore:
		stats.Ignored++
	}
}

func (b *PivotBuilder) grid(window export.DayWindow, columns export.ColumnSet) export.DayGrid {
	rows := make([][]string, export.SlotsPerDay)
	for i := range rows {
		row := make([]string, columns.Len())
		key := export.CellKey{DayKey: window.MinDayKey, Slot: i + 1}
		for j := range row {
			key.POD = columns.At(j)
			if cell, ok := b.cells[key]; ok {
				row[j] = cell.String()
			}
		}
		rows[i] = row
	}
	return export.DayGrid{Window: window, Columns: columns, Rows: rows}
}
