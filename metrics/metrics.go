// Package metrics exposes Prometheus instrumentation for the refresh
// pipeline and the snapshot store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "countrypulse"

var (
	refreshCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_cycles_total",
		Help:      "Completed refresh cycles.",
	})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "End-to-end duration of a refresh cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	recordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_written_total",
		Help:      "Country records upserted across all refresh cycles.",
	})

	recordsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_skipped_total",
		Help:      "Raw records dropped during normalization or rate resolution.",
	})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fetch_errors_total",
		Help:      "Failed upstream feed reads by source.",
	}, []string{"source"})

	countriesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "countries_tracked",
		Help:      "Country records currently in the snapshot store.",
	})
)

// ObserveRefresh records the outcome of one successful refresh cycle.
func ObserveRefresh(duration time.Duration, written, skipped int) {
	refreshCycles.Inc()
	refreshDuration.Observe(duration.Seconds())
	recordsWritten.Add(float64(written))
	recordsSkipped.Add(float64(skipped))
}

// FetchErrorInc counts a failed feed read for the given source.
func FetchErrorInc(source string) {
	fetchErrors.WithLabelValues(source).Inc()
}

// SetCountriesTracked updates the store-size gauge.
func SetCountriesTracked(total int64) {
	countriesTracked.Set(float64(total))
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
