package application

import (
	"context"
	"time"

	export "quarterhour-export/internal/export/domain"
)

// MeasurementSource is the read side of the measurement store.
// Day keys are yyyyMMdd and ranges are half-open [fromDayKey, toDayKey).
type MeasurementSource interface {
	// DistinctPODs returns the PODs present in the selection, ascending.
	DistinctPODs(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string) ([]string, error)
	// HasMeasurements reports whether at least one tuple matches.
	HasMeasurements(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string, pods []string) (bool, error)
	// StreamMeasurements calls fn for every matching tuple ordered by
	// (dayKey, slot, pod, measType). Returning an error from fn stops the stream.
	StreamMeasurements(ctx context.Context, sel export.Selection, fromDayKey, toDayKey string, pods []string, fn func(export.MeasurementTuple) error) error
}

// GridSink receives the header once and then every day grid in order.
type GridSink interface {
	WriteHeader(columns export.ColumnSet) error
	WriteDay(grid export.DayGrid) error
}

// GridWriter is the primary sink; it owns the missing-value diagnostics.
type GridWriter interface {
	GridSink
	Diagnostics() *export.Diagnostics
}

// Recorder observes run progress, typically for metrics.
type Recorder interface {
	DayExported(rows int, elapsed time.Duration)
	AnomalyObserved()
	RunFinished(summary RunSummary, err error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type nopRecorder struct{}

func (nopRecorder) DayExported(int, time.Duration) {}
func (nopRecorder) AnomalyObserved()               {}
func (nopRecorder) RunFinished(RunSummary, error)  {}
