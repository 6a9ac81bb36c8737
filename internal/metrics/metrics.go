// Package metrics holds the Prometheus collectors for the service.
//
// Collectors live on a private registry rather than the global default one,
// so every test can build its own Metrics without duplicate-registration
// panics. Handler serves that registry at /metrics.
package metrics

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	RequestCounter       *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	IdentifiersAllocated *prometheus.CounterVec
	LookupRetries        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		IdentifiersAllocated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "identifiers_allocated_total",
				Help: "Sequential identifiers handed out, by prefix",
			},
			[]string{"prefix"},
		),
		LookupRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lookup_insert_races_total",
				Help: "Get-or-create inserts that lost a race and re-read the existing row",
			},
			[]string{"table"},
		),
	}
}

// IdentifierAllocated counts one allocation. Safe on a nil *Metrics.
func (m *Metrics) IdentifierAllocated(prefix string) {
	if m == nil {
		return
	}
	m.IdentifiersAllocated.WithLabelValues(prefix).Inc()
}

// LookupRetried counts one lost get-or-create race. Safe on a nil *Metrics.
func (m *Metrics) LookupRetried(table string) {
	if m == nil {
		return
	}
	m.LookupRetries.WithLabelValues(table).Inc()
}

// RegisterDBStats exposes the pool statistics of db (open, in use, idle,
// wait count), read at scrape time.
func (m *Metrics) RegisterDBStats(db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	m.Registry.MustRegister(collectors.NewDBStatsCollector(db, "main"))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
