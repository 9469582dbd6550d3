package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
)

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscal_queries_total",
			Help: "Calendar queries by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	refreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campuscal_refreshes_total",
			Help: "Index rebuilds by outcome",
		},
		[]string{"outcome"},
	)
	indexEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campuscal_index_entries",
		Help: "Keys in the current calendar index",
	})
	skippedEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campuscal_index_skipped_entries",
		Help: "Scraped entries dropped from the current index because their date text did not parse",
	})
	lastRefresh = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "campuscal_index_last_refresh_timestamp_seconds",
		Help: "Unix time of the last successful index rebuild",
	})

	registerOnce sync.Once
)

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(queriesTotal, refreshesTotal, indexEntries, skippedEntries, lastRefresh)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordQuery counts one query of the given operation.
func RecordQuery(operation, outcome string) {
	queriesTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRefresh records a successful rebuild and the resulting index size.
func RecordRefresh(entries, skipped int, at time.Time) {
	refreshesTotal.WithLabelValues("success").Inc()
	indexEntries.Set(float64(entries))
	skippedEntries.Set(float64(skipped))
	lastRefresh.Set(float64(at.Unix()))
}

// RecordRefreshFailure counts a failed rebuild.
func RecordRefreshFailure() {
	refreshesTotal.WithLabelValues("failure").Inc()
}
