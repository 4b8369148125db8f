package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests and multiple servers in one process
// do not collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	CommitAttempts  prometheus.Counter
	CommitOutcomes  *prometheus.CounterVec
	CommitLatencyMS prometheus.Histogram
	Sessions        *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vivero",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vivero",
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method"}),
		CommitAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vivero",
			Subsystem: "pos",
			Name:      "commit_attempts_total",
			Help:      "Storage transactions started for sale commits, retries included.",
		}),
		CommitOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vivero",
			Subsystem: "pos",
			Name:      "commit_outcomes_total",
			Help:      "Sale commit results by outcome.",
		}, []string{"outcome"}),
		CommitLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "vivero",
			Subsystem: "pos",
			Name:      "commit_duration_ms",
			Help:      "Sale commit latency in milliseconds, retries included.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vivero",
			Subsystem: "pos",
			Name:      "cash_sessions_total",
			Help:      "Cash session transitions by event and variance class.",
		}, []string{"event", "variance_class"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Requests,
		m.LatencyMS,
		m.CommitAttempts,
		m.CommitOutcomes,
		m.CommitLatencyMS,
		m.Sessions,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(method).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) ObserveCommitAttempt() {
	if m == nil {
		return
	}
	m.CommitAttempts.Inc()
}

func (m *Metrics) ObserveCommit(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommitOutcomes.WithLabelValues(outcome).Inc()
	m.CommitLatencyMS.Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) ObserveSession(event string, varianceClass string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(event, varianceClass).Inc()
}
