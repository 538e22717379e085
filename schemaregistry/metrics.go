package schemaregistry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch and resolution outcome label values.
const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

// Metrics holds the Prometheus metrics for the whole resolution pipeline:
// registry fetches, cache behavior, name resolutions, and config reloads.
// A single Metrics value is shared by the client, the caching layers, and
// the resolver.
//
// All methods are nil-safe, so an unset collector costs nothing.
type Metrics struct {
	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec
	SchemaBytes   prometheus.Histogram

	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Resolution metrics
	ResolutionsTotal *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// NewMetrics creates a metrics collector registered with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a metrics collector registered with a custom
// registry. Useful for testing to avoid global state.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "typeresolve",
				Name:      "schema_fetches_total",
				Help:      "Total number of schema registry fetches",
			},
			[]string{"outcome"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "typeresolve",
				Name:      "schema_fetch_duration_seconds",
				Help:      "Schema registry fetch duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
		SchemaBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "typeresolve",
				Name:      "schema_bytes",
				Help:      "Size of fetched schemas in bytes",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "typeresolve",
				Name:      "schema_cache_hits_total",
				Help:      "Total number of schema cache hits",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "typeresolve",
				Name:      "schema_cache_misses_total",
				Help:      "Total number of schema cache misses",
			},
		),
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "typeresolve",
				Name:      "resolutions_total",
				Help:      "Total number of type name resolutions",
			},
			[]string{"format", "outcome"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "typeresolve",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "typeresolve",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "typeresolve",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

func (m *Metrics) observeFetch(outcome string, d time.Duration, schemaBytes int) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if schemaBytes >= 0 {
		m.SchemaBytes.Observe(float64(schemaBytes))
	}
}

func (m *Metrics) observeCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) observeCacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

// ObserveResolution records one type name resolution attempt. format is the
// schema format label and outcome one of "ok", "not_found", "unavailable",
// or "error".
func (m *Metrics) ObserveResolution(format, outcome string) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(format, outcome).Inc()
}

func (m *Metrics) observeReload(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ConfigReloadErrors.Inc()
		return
	}
	m.ConfigReloads.Inc()
	m.ConfigLastReload.Set(float64(time.Now().Unix()))
}
