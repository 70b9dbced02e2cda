// Package metrics holds the Prometheus collectors for the web front end.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "market_web"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	backendRequests *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec

	adminEvictions prometheus.Counter
	loginThrottled prometheus.Counter
}

// New creates and registers every collector, including the process and Go
// runtime collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "route"}),
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Commerce API calls by operation and response status (0 for transport failures).",
		}, []string{"operation", "status"}),
		backendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Duration of commerce API calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}, []string{"operation"}),
		adminEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "token_evictions_total",
			Help:      "Admin tokens discarded after the backend rejected them.",
		}),
		loginThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "login_throttled_total",
			Help:      "Admin login attempts refused by the rate limiter.",
		}),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.backendRequests,
		m.backendDuration,
		m.adminEvictions,
		m.loginThrottled,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// TrackInFlight increments the in-flight gauge and returns its decrement.
func (m *Metrics) TrackInFlight() func() {
	m.httpInFlight.Inc()
	return m.httpInFlight.Dec
}

// ObserveHTTP records one handled request. route is the matched pattern, not
// the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveBackend records one commerce API call.
func (m *Metrics) ObserveBackend(operation string, status int, d time.Duration) {
	m.backendRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.backendDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) AdminTokenEvicted() { m.adminEvictions.Inc() }

func (m *Metrics) LoginThrottled() { m.loginThrottled.Inc() }
