package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "requests.php", 200, 20*time.Millisecond)
	m.ObserveRequest("GET", "requests.php", 200, 30*time.Millisecond)
	m.ObserveRequest("PUT", "requests.php", 401, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "requests.php", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("PUT", "requests.php", "401")))
}

func TestPollOutcomes(t *testing.T) {
	m := New()
	m.PollRefreshed(nil, time.Millisecond)
	m.PollRefreshed(errors.New("boom"), time.Millisecond)
	m.PollSkipped()
	m.PollSkipped()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollTicks.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollTicks.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pollTicks.WithLabelValues("skipped")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "x", 200, 0)
	m.PollRefreshed(nil, 0)
	m.PollSkipped()
	m.SetAuthenticated(true)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.SetAuthenticated(true)
	m.ObserveRequest("GET", "auth.php", 200, time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "clickcheck_session_authenticated 1")
	assert.Contains(t, body, `clickcheck_api_requests_total{endpoint="auth.php",method="GET",status="200"} 1`)
}
