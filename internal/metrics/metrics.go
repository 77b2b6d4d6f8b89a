// Package metrics holds the Prometheus collectors for backend calls and
// board polling.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its own registry so several instances can live in one
// process (tests, the dev server) without colliding.
type Metrics struct {
	Registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	pollTicks   *prometheus.CounterVec
	pollLatency prometheus.Histogram
	sessionUp   prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clickcheck",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Calls to the backend by method, endpoint and HTTP status (0 = no response).",
		}, []string{"method", "endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clickcheck",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Backend call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clickcheck",
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Poll ticks by outcome: ok, error or skipped.",
		}, []string{"outcome"}),
		pollLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clickcheck",
			Subsystem: "poller",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent refreshing the board per tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		sessionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clickcheck",
			Subsystem: "session",
			Name:      "authenticated",
			Help:      "1 while the process holds a verified session.",
		}),
	}
	m.Registry.MustRegister(m.requests, m.duration, m.pollTicks, m.pollLatency, m.sessionUp)
	return m
}

// ObserveRequest satisfies api.Observer.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// PollRefreshed records a finished poll tick. It matches the poller's
// OnRefresh hook.
func (m *Metrics) PollRefreshed(err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.pollTicks.WithLabelValues(outcome).Inc()
	m.pollLatency.Observe(d.Seconds())
}

func (m *Metrics) PollSkipped() {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues("skipped").Inc()
}

func (m *Metrics) SetAuthenticated(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.sessionUp.Set(1)
		return
	}
	m.sessionUp.Set(0)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
