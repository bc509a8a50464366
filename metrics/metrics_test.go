package metrics

import (
	"io"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestSolverMetrics(t *testing.T) {
	m := NewMetrics("demaxmin")
	s := NewSolverMetrics(m)

	s.ObserveSolve("session", 3, 0, 170, 2*time.Millisecond)
	s.ObserveSolve("oneshot", 2, 2, 40, time.Millisecond)
	s.ObserveFailure("oneshot", "invalid_argument")
	s.ObserveDummy("destination")
	s.ObserveSession("create")

	text := scrape(t, m)
	assert.Contains(t, text, `demaxmin_solves_total{mode="session",status="success"} 1`)
	assert.Contains(t, text, `demaxmin_solves_total{mode="oneshot",status="invalid_argument"} 1`)
	assert.Contains(t, text, `demaxmin_dummy_added_total{kind="destination"} 1`)
	assert.Contains(t, text, `demaxmin_sessions_total{action="create"} 1`)
	assert.Contains(t, text, "demaxmin_total_cost_sum 210")
	assert.Contains(t, text, "demaxmin_total_cost_count 2")
	assert.Contains(t, text, "demaxmin_swept_assignments_sum 2")
	assert.Contains(t, text, `demaxmin_swept_assignments_bucket{le="0"} 1`)

	var nilMetrics *SolverMetrics
	assert.NotPanics(t, func() { nilMetrics.ObserveSolve("x", 1, 1, 1, time.Second) })
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	m := NewMetrics("demaxmin")
	m.RegisterBuildInfo("demaxmin", "v1.0.0")
	m.RegisterBuildInfo("demaxmin", "v2.0.0")
	m.HTTPRequestsTotal.WithLabelValues("POST", "/v1/solve", "200").Inc()

	text := scrape(t, m)
	assert.Contains(t, text, `build_info{go_version="`+runtime.Version()+`",service="demaxmin",version="v1.0.0"} 1`)
	assert.NotContains(t, text, "v2.0.0")
	assert.Contains(t, text, `http_server_requests_total{method="POST",path="/v1/solve",status="200"} 1`)
	assert.Contains(t, text, "go_goroutines")
}
