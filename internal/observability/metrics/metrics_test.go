package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"quarterhour-export/internal/export/application"
	export "quarterhour-export/internal/export/domain"
)

func TestRecorderCounts(t *testing.T) {
	m := New()
	m.DayExported(96, 20*time.Millisecond)
	m.DayExported(96, 30*time.Millisecond)
	m.AnomalyObserved()

	if got := testutil.ToFloat64(m.DaysTotal); got != 2 {
		t.Fatalf("days = %v", got)
	}
	if got := testutil.ToFloat64(m.RowsTotal); got != 192 {
		t.Fatalf("rows = %v", got)
	}
	if got := testutil.ToFloat64(m.AnomaliesTotal); got != 1 {
		t.Fatalf("anomalies = %v", got)
	}
	if got := testutil.CollectAndCount(m.DayLatency); got != 1 {
		t.Fatalf("latency series = %d", got)
	}
}

func TestRunFinishedResults(t *testing.T) {
	m := New()
	started := time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)
	summary := application.RunSummary{
		MissingPODs:  []string{"A", "B"},
		MissingCells: 17,
		StartedAt:    started,
		Duration:     2 * time.Second,
	}
	m.RunFinished(summary, nil)
	m.RunFinished(application.RunSummary{}, export.ErrNoColumns)
	m.RunFinished(application.RunSummary{}, errors.New("boom"))

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues(resultSuccess)); got != 1 {
		t.Fatalf("success = %v", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues(resultNoData)); got != 1 {
		t.Fatalf("no data = %v", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues(resultError)); got != 1 {
		t.Fatalf("error = %v", got)
	}
	if got := testutil.ToFloat64(m.LastSuccess); got != float64(started.Add(2*time.Second).Unix()) {
		t.Fatalf("last success = %v", got)
	}
}

func TestPush(t *testing.T) {
	m := New()
	if err := m.Push("", "job", "plant_energy"); err != nil {
		t.Fatalf("empty url: %v", err)
	}

	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m.DayExported(96, time.Millisecond)
	if err := m.Push(server.URL, "quarterhour_export", "plant_energy"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if path != "/metrics/job/quarterhour_export/selection/plant_energy" {
		t.Fatalf("path = %q", path)
	}
}
