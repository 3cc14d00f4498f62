package httpsrv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics is the server's prometheus instrumentation, served at GET /metrics.
type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	redirectsTotal  *prometheus.CounterVec
	eventsDropped   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortener",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route, method, and status class.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shortener",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		redirectsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shortener",
			Name:      "redirects_total",
			Help:      "Redirect outcomes by result (served, not_found).",
		}, []string{"result"}),
		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "shortener",
			Name:      "access_events_dropped_total",
			Help:      "Access events dropped because the recorder queue was full.",
		}),
	}
}

func (m *metrics) observeRequest(route, method string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
