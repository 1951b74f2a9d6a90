package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"quarterhour-export/internal/export/application"
	export "quarterhour-export/internal/export/domain"
)

const (
	metricPrefix = "quarterhour_export_"

	resultSuccess = "success"
	resultNoData  = "no_data"
	resultError   = "error"
)

// Metrics bundles the export run metrics. It implements application.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	DaysTotal      prometheus.Counter
	RowsTotal      prometheus.Counter
	AnomaliesTotal prometheus.Counter
	MissingCells   prometheus.Gauge
	MissingPODs    prometheus.Gauge
	DayLatency     prometheus.Histogram
	RunDuration    prometheus.Gauge
	RunsTotal      *prometheus.CounterVec
	LastSuccess    prometheus.Gauge
}

// New constructs metrics registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		DaysTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "days_total",
			Help: "Day windows written",
		}),
		RowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "rows_total",
			Help: "Grid rows written",
		}),
		AnomaliesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "duplicate_anomalies_total",
			Help: "Tuples discarded because the cell already held a reading",
		}),
		MissingCells: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "missing_cells",
			Help: "Empty grid cells in the last run",
		}),
		MissingPODs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "missing_pods",
			Help: "PODs with at least one empty cell in the last run",
		}),
		DayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "day_latency_seconds",
			Help:    "Fetch, pivot and write latency per day window",
			Buckets: prometheus.DefBuckets,
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "run_duration_seconds",
			Help: "Duration of the last run",
		}),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "runs_total",
				Help: "Export runs by result",
			},
			[]string{"result"},
		),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "last_success_timestamp_seconds",
			Help: "Unix time of the last successful run",
		}),
	}
	m.registry.MustRegister(
		m.DaysTotal,
		m.RowsTotal,
		m.AnomaliesTotal,
		m.MissingCells,
		m.MissingPODs,
		m.DayLatency,
		m.RunDuration,
		m.RunsTotal,
		m.LastSuccess,
	)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// DayExported records one written day.
func (m *Metrics) DayExported(rows int, elapsed time.Duration) {
	m.DaysTotal.Inc()
	m.RowsTotal.Add(float64(rows))
	m.DayLatency.Observe(elapsed.Seconds())
}

// AnomalyObserved records one duplicate anomaly.
func (m *Metrics) AnomalyObserved() {
	m.AnomaliesTotal.Inc()
}

// RunFinished records the run outcome.
func (m *Metrics) RunFinished(summary application.RunSummary, err error) {
	m.RunDuration.Set(summary.Duration.Seconds())
	m.MissingCells.Set(float64(summary.MissingCells))
	m.MissingPODs.Set(float64(len(summary.MissingPODs)))
	m.RunsTotal.WithLabelValues(resultLabel(err)).Inc()
	if err == nil {
		m.LastSuccess.Set(float64(summary.StartedAt.Add(summary.Duration).Unix()))
	}
}

// Push sends the registry to a Prometheus Pushgateway under job, grouped by
// selection name.
func (m *Metrics) Push(url, job, selection string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("selection", selection).
		Push()
	if err != nil {
		return fmt.Errorf("metrics push: %w", err)
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, export.ErrNoColumns), errors.Is(err, export.ErrNoMeasurements):
		return resultNoData
	default:
		return resultError
	}
}
