// Package metrics provides Prometheus metrics instrumentation for frontier.
//
// Metrics exposed:
//   - frontier_cycles_total: Counter of poll cycles by result (ok, store_error, error)
//   - frontier_cycle_duration_seconds: Histogram of full cycle durations
//   - frontier_query_duration_seconds: Histogram of store range queries by series
//   - frontier_ready_buckets: Gauge of the size of the last ready set
//   - frontier_latest_ready_timestamp: Gauge of the newest ready bucket
//   - frontier_series_entries: Gauge of each series' trimmed length
//   - frontier_parse_errors_total: Counter of skipped, unparsable entries by series
//   - frontier_store_errors_total: Counter of failed store queries by series
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle results.
const (
	ResultOK         = "ok"
	ResultStoreError = "store_error"
	ResultError      = "error"
)

type Metrics struct {
	CyclesTotal          *prometheus.CounterVec
	CycleDuration        prometheus.Histogram
	QueryDuration        *prometheus.HistogramVec
	ReadyBuckets         prometheus.Gauge
	LatestReadyTimestamp prometheus.Gauge
	SeriesEntries        *prometheus.GaugeVec
	ParseErrorsTotal     *prometheus.CounterVec
	StoreErrorsTotal     *prometheus.CounterVec
}

// New registers frontier metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_cycles_total",
			Help: "Total number of poll cycles by result",
		}, []string{"result"}),

		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "frontier_cycle_duration_seconds",
			Help:    "Duration of a full poll cycle",
			Buckets: prometheus.DefBuckets,
		}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frontier_query_duration_seconds",
			Help:    "Duration of store range queries by series",
			Buckets: prometheus.DefBuckets,
		}, []string{"series"}),

		ReadyBuckets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "frontier_ready_buckets",
			Help: "Number of buckets in the last ready set",
		}),

		LatestReadyTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "frontier_latest_ready_timestamp",
			Help: "Newest bucket timestamp in the last ready set",
		}),

		SeriesEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "frontier_series_entries",
			Help: "Entries per series after the trailing margin is excluded",
		}, []string{"series"}),

		ParseErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_parse_errors_total",
			Help: "Total number of series entries skipped because they are not timestamps",
		}, []string{"series"}),

		StoreErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frontier_store_errors_total",
			Help: "Total number of failed store queries by series",
		}, []string{"series"}),
	}
}

func (m *Metrics) RecordCycle(result string, seconds float64) {
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(seconds)
}

func (m *Metrics) ObserveQuery(series string, seconds float64) {
	m.QueryDuration.WithLabelValues(series).Observe(seconds)
}

// SetReady records the size of the ready set and, when non-empty, its newest bucket.
func (m *Metrics) SetReady(count int, latest int64, ok bool) {
	m.ReadyBuckets.Set(float64(count))
	if ok {
		m.LatestReadyTimestamp.Set(float64(latest))
	}
}

func (m *Metrics) SetSeriesEntries(series string, n int) {
	m.SeriesEntries.WithLabelValues(series).Set(float64(n))
}

func (m *Metrics) RecordParseError(series string) {
	m.ParseErrorsTotal.WithLabelValues(series).Inc()
}

func (m *Metrics) RecordStoreError(series string) {
	m.StoreErrorsTotal.WithLabelValues(series).Inc()
}
