package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request phases used as metric labels.
const (
	phaseListing = "listing"
	phaseDetail  = "detail"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RecordsTotal    prometheus.Counter
	NamesListed     prometheus.Gauge
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condastats_requests_total",
			Help: "Total HTTP requests issued, by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "condastats_request_duration_seconds",
			Help:    "HTTP request latency, by phase.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	records := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "condastats_records_total",
			Help: "Total number of package records collected.",
		},
	)
	namesListed := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "condastats_package_names",
			Help: "Number of package names to fetch in the current run.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "condastats_errors_total",
			Help: "Total number of failed items by error type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, records, namesListed, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		RecordsTotal:    records,
		NamesListed:     namesListed,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncRecords increments the records counter.
func (m *Metrics) IncRecords() {
	if m == nil {
		return
	}
	m.RecordsTotal.Inc()
}

// SetNames records how many package names the run will fetch.
func (m *Metrics) SetNames(n int) {
	if m == nil {
		return
	}
	m.NamesListed.Set(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
