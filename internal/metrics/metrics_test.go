package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xtxerr/vigil/internal/storage/types"
)

func TestMetrics_Ingestion(t *testing.T) {
	m := New()

	m.CycleCompleted("saved", 10*time.Millisecond)
	m.CycleCompleted("saved", 20*time.Millisecond)
	m.CycleCompleted("absent", time.Millisecond)

	if got := testutil.ToFloat64(m.cycles.WithLabelValues("saved")); got != 2 {
		t.Fatalf("expected 2 saved cycles, got %f", got)
	}
	if got := testutil.ToFloat64(m.cycles.WithLabelValues("absent")); got != 1 {
		t.Fatalf("expected 1 absent cycle, got %f", got)
	}
	if samples := testutil.CollectAndCount(m.cycleLatency); samples != 1 {
		t.Fatalf("expected cycle histogram to be collected once, got %d", samples)
	}

	m.Invalidated([]types.ReasonCode{types.ReasonTooOld, types.ReasonSystemOrSuspect})
	m.Invalidated([]types.ReasonCode{types.ReasonTooOld})
	if got := testutil.ToFloat64(m.invalidations.WithLabelValues("DATA_TOO_OLD")); got != 2 {
		t.Fatalf("expected 2 DATA_TOO_OLD, got %f", got)
	}

	m.ReadingSaved(types.Reading{Time: 1700000000})
	if got := testutil.ToFloat64(m.lastReading); got != 1700000000 {
		t.Fatalf("expected last reading gauge 1700000000, got %f", got)
	}

	m.FetchCompleted(time.Millisecond, nil)
	m.FetchCompleted(time.Millisecond, errors.New("boom"))
	if samples := testutil.CollectAndCount(m.fetchLatency); samples != 2 {
		t.Fatalf("expected 2 fetch series, got %d", samples)
	}
}

func TestMetrics_Query(t *testing.T) {
	m := New()

	m.QueryCompleted("readings", 5, nil)
	m.QueryCompleted("readings", 0, errors.New("down"))

	if got := testutil.ToFloat64(m.queries.WithLabelValues("readings", "ok")); got != 1 {
		t.Fatalf("expected 1 ok query, got %f", got)
	}
	if got := testutil.ToFloat64(m.queries.WithLabelValues("readings", "error")); got != 1 {
		t.Fatalf("expected 1 failed query, got %f", got)
	}
	if got := testutil.ToFloat64(m.queryRows.WithLabelValues("readings")); got != 5 {
		t.Fatalf("expected 5 rows, got %f", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RequestCompleted("/data", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `vigil_http_requests_total{code="200",route="/data"} 1`) {
		t.Errorf("request counter missing from exposition:\n%s", body)
	}
}

func TestMetrics_Independent(t *testing.T) {
	a := New()
	b := New()
	a.CycleCompleted("saved", 0)

	if got := testutil.ToFloat64(b.cycles.WithLabelValues("saved")); got != 0 {
		t.Errorf("registries should be independent, got %f", got)
	}
}
