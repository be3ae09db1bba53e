package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Backtest metrics
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	barsProcessed    prometheus.Counter
	tradesTotal      *prometheus.CounterVec
	entriesRejected  *prometheus.CounterVec
	finalValue       *prometheus.GaugeVec
	maxDrawdown      *prometheus.GaugeVec
	exposureCurrent  *prometheus.GaugeVec

	// Data metrics
	priceFetches      *prometheus.CounterVec
	priceFetchLatency *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"strategy", "status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ladder_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
	)
	r.barsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ladder_bars_processed_total",
			Help: "Total number of daily bars simulated",
		},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_trades_total",
			Help: "Total number of executed trades",
		},
		[]string{"kind"},
	)
	r.entriesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_entries_rejected_total",
			Help: "Total number of signaled entries rejected by capital or exposure checks",
		},
		[]string{"stage"},
	)
	r.finalValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ladder_final_portfolio_value",
			Help: "Portfolio value at the last bar of the latest run",
		},
		[]string{"symbol"},
	)
	r.maxDrawdown = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ladder_max_drawdown_percent",
			Help: "Maximum drawdown of the latest run in percent",
		},
		[]string{"symbol"},
	)
	r.exposureCurrent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ladder_exposure_percent",
			Help: "Exposure at the last bar of the latest run in percent",
		},
		[]string{"symbol"},
	)
	r.priceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_price_fetches_total",
			Help: "Total number of price history fetches",
		},
		[]string{"source", "status"},
	)
	r.priceFetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ladder_price_fetch_duration_seconds",
			Help:    "Price history fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)
	r.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ladder_price_cache_lookups_total",
			Help: "Total number of price cache lookups",
		},
		[]string{"result"},
	)

	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.entriesRejected)
	reg.MustRegister(r.finalValue)
	reg.MustRegister(r.maxDrawdown)
	reg.MustRegister(r.exposureCurrent)
	reg.MustRegister(r.priceFetches)
	reg.MustRegister(r.priceFetchLatency)
	reg.MustRegister(r.cacheLookups)

	return r
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(strategy, status string, duration float64) {
	r.backtestsTotal.WithLabelValues(strategy, status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordBars adds simulated bars.
func (r *Registry) RecordBars(n int) {
	r.barsProcessed.Add(float64(n))
}

// RecordTrade records an executed trade of the given kind.
func (r *Registry) RecordTrade(kind string) {
	r.tradesTotal.WithLabelValues(kind).Inc()
}

// RecordRejection records a rejected entry for a stage.
func (r *Registry) RecordRejection(stage string) {
	r.entriesRejected.WithLabelValues(stage).Inc()
}

// SetRunSummary publishes the headline figures of the latest run.
func (r *Registry) SetRunSummary(symbol string, finalValue, maxDrawdown, exposure float64) {
	r.finalValue.WithLabelValues(symbol).Set(finalValue)
	r.maxDrawdown.WithLabelValues(symbol).Set(maxDrawdown)
	r.exposureCurrent.WithLabelValues(symbol).Set(exposure)
}

// RecordFetch records a price history fetch.
func (r *Registry) RecordFetch(source string, err error, duration float64) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.priceFetches.WithLabelValues(source, status).Inc()
	r.priceFetchLatency.WithLabelValues(source).Observe(duration)
}

// RecordCacheLookup records a price cache hit or miss.
func (r *Registry) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// WriteTextfile writes all metrics in the text exposition format to path,
// for collection by a node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r)
}
