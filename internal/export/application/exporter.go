package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	export "quarterhour-export/internal/export/domain"
)

// RunSummary describes a finished export run.
type RunSummary struct {
	Selection    export.Selection
	Columns      int
	Days         int
	Rows         int
	Tuples       int
	Anomalies    int
	MissingPODs  []string
	MissingCells int
	StartedAt    time.Time
	Duration     time.Duration
}

// Exporter runs the day-by-day export of one selection.
type Exporter struct {
	source   MeasurementSource
	catalog  *ColumnCatalog
	builder  *PivotBuilder
	writer   GridWriter
	sinks    []GridSink
	recorder Recorder
	clock    Clock
	logger   *log.Logger
	policy   export.DuplicatePolicy
}

// ExporterOption configures the exporter.
type ExporterOption func(*Exporter)

// WithSinks adds sinks that receive the same header and grids as the writer.
func WithSinks(sinks ...GridSink) ExporterOption {
	return func(e *Exporter) {
		for _, sink := range sinks {
			if sink != nil {
				e.sinks = append(e.sinks, sink)
			}
		}
	}
}

// WithRecorder sets the progress recorder.
func WithRecorder(recorder Recorder) ExporterOption {
	return func(e *Exporter) {
		if recorder != nil {
			e.recorder = recorder
		}
	}
}

// WithClock overrides the clock used for timings.
func WithClock(clock Clock) ExporterOption {
	return func(e *Exporter) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithPolicy overrides the duplicate policy.
func WithPolicy(policy export.DuplicatePolicy) ExporterOption {
	return func(e *Exporter) {
		e.policy = policy
	}
}

// NewExporter constructs an exporter.
func NewExporter(source MeasurementSource, writer GridWriter, logger *log.Logger, opts ...ExporterOption) (*Exporter, error) {
	if source == nil {
		return nil, errors.New("exporter: nil source")
	}
	if writer == nil {
		return nil, errors.New("exporter: nil writer")
	}
	if logger == nil {
		logger = log.Default()
	}
	e := &Exporter{
		source:   source,
		writer:   writer,
		recorder: nopRecorder{},
		clock:    SystemClock{},
		logger:   logger,
		policy:   export.DefaultDuplicatePolicy,
	}
	for _, opt := range opts {
		opt(e)
	}

	catalog, err := NewColumnCatalog(source, logger)
	if err != nil {
		return nil, err
	}
	builder, err := NewPivotBuilder(source, logger,
		WithDuplicatePolicy(e.policy),
		WithAnomalyHandler(func(export.DuplicateValueAnomaly) { e.recorder.AnomalyObserved() }),
	)
	if err != nil {
		return nil, err
	}
	e.catalog = catalog
	e.builder = builder
	return e, nil
}

// Run exports sel. The first error aborts the run; days already written stay
// in the sinks.
func (e *Exporter) Run(ctx context.Context, sel export.Selection) (RunSummary, error) {
	summary := RunSummary{Selection: sel, StartedAt: e.clock.Now()}
	err := e.run(ctx, sel, &summary)
	summary.Duration = e.clock.Now().Sub(summary.StartedAt)
	diagnostics := e.writer.Diagnostics()
	summary.MissingPODs = diagnostics.PODs()
	summary.MissingCells = diagnostics.TotalMissing()
	e.recorder.RunFinished(summary, err)
	if err != nil {
		return summary, err
	}

	e.logger.Printf("export diagnostics: selection=%s pods_with_missing_values=%d", sel.Name(), len(summary.MissingPODs))
	for _, pod := range summary.MissingPODs {
		e.logger.Printf("export diagnostics: pod=%s missing_cells=%d", pod, diagnostics.MissingCells(pod))
	}
	e.logger.Printf("export finished: selection=%s days=%d rows=%d anomalies=%d elapsed=%s",
		sel.Name(), summary.Days, summary.Rows, summary.Anomalies, summary.Duration)
	return summary, nil
}

func (e *Exporter) run(ctx context.Context, sel export.Selection, summary *RunSummary) error {
	if err := sel.Validate(); err != nil {
		return err
	}

	columns, err := e.catalog.Resolve(ctx, sel)
	if err != nil {
		return err
	}
	summary.Columns = columns.Len()
	if err := e.writeHeader(columns); err != nil {
		return err
	}

	found, err := e.source.HasMeasurements(ctx, sel, sel.StartKey(), sel.EndKey(), columns.PODs())
	if err != nil {
		return fmt.Errorf("probe measurements: %w", err)
	}
	if !found {
		return export.ErrNoMeasurements
	}

	windows := export.NewDayWindows(sel.Start, sel.End)
	for {
		window, ok := windows.Next()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		started := e.clock.Now()
		grid, stats, err := e.builder.Build(ctx, sel, window, columns)
		if err != nil {
			return err
		}
		if err := e.writeDay(grid); err != nil {
			return err
		}
		elapsed := e.clock.Now().Sub(started)
		summary.Days++
		summary.Rows += len(grid.Rows)
		summary.Tuples += stats.Tuples
		summary.Anomalies += stats.Anomalies
		e.recorder.DayExported(len(grid.Rows), elapsed)
		e.logger.Printf("export day written: selection=%s window=%s tuples=%d anomalies=%d elapsed=%s",
			sel.Name(), window, stats.Tuples, stats.Anomalies, elapsed)
	}
}

func (e *Exporter) writeHeader(columns export.ColumnSet) error {
	if err := e.writer.WriteHeader(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, sink := range e.sinks {
		if err := sink.WriteHeader(columns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	return nil
}

func (e *Exporter) writeDay(grid export.DayGrid) error {
	if err := e.writer.WriteDay(grid); err != nil {
		return fmt.Errorf("write day %s: %w", grid.Window, err)
	}
	for _, sink := range e.sinks {
		if err := sink.WriteDay(grid); err != nil {
			return fmt.Errorf("write day %s: %w", grid.Window, err)
		}
	}
	return nil
}
