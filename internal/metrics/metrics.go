// Package metrics collects and exposes Prometheus metrics for the
// sync pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the collection interface consumed by the service and
// scheduler layers.
type Recorder interface {
	RecordSyncSuccess(duration time.Duration)
	RecordSyncFailure(duration time.Duration)
	RecordSyncSkipped()
	RecordTimestampSource(source string)
	RecordWearableFailure()
	RecordLogin(outcome string)
	SetBreakerState(state float64)
	SetLastReading(valueMgPerDl int, at time.Time)
}

// Collector implements Recorder on top of a Prometheus registry.
type Collector struct {
	syncSuccess     prometheus.Counter
	syncFailure     prometheus.Counter
	syncSkipped     prometheus.Counter
	syncDuration    prometheus.Histogram
	timestampSource *prometheus.CounterVec
	wearableFailure prometheus.Counter
	loginAttempts   *prometheus.CounterVec
	breakerState    prometheus.Gauge
	lastReading     prometheus.Gauge
	lastReadingTime prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libresync_sync_success_total",
			Help: "Completed sync runs that wrote a health record.",
		}),
		syncFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libresync_sync_failure_total",
			Help: "Sync runs that failed before the health record was written.",
		}),
		syncSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libresync_sync_skipped_total",
			Help: "Scheduled runs skipped for lack of network connectivity.",
		}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "libresync_sync_duration_seconds",
			Help:    "Wall-clock duration of sync runs.",
			Buckets: prometheus.DefBuckets,
		}),
		timestampSource: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libresync_timestamp_source_total",
			Help: "Readings by timestamp interpretation tier.",
		}, []string{"source"}),
		wearableFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libresync_wearable_failure_total",
			Help: "Best-effort wearable mirror attempts that failed.",
		}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libresync_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libresync_breaker_state",
			Help: "Connections circuit breaker state (0 closed, 1 half-open, 2 open).",
		}),
		lastReading: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libresync_last_reading_mg_per_dl",
			Help: "Most recently synced glucose value in mg/dL.",
		}),
		lastReadingTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libresync_last_reading_timestamp_seconds",
			Help: "Unix time of the most recently synced reading.",
		}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFailure,
		c.syncSkipped,
		c.syncDuration,
		c.timestampSource,
		c.wearableFailure,
		c.loginAttempts,
		c.breakerState,
		c.lastReading,
		c.lastReadingTime,
	)

	return c
}

// RecordSyncSuccess counts a completed run and observes its duration.
func (c *Collector) RecordSyncSuccess(duration time.Duration) {
	c.syncSuccess.Inc()
	c.syncDuration.Observe(duration.Seconds())
}

// RecordSyncFailure counts a failed run and observes its duration.
func (c *Collector) RecordSyncFailure(duration time.Duration) {
	c.syncFailure.Inc()
	c.syncDuration.Observe(duration.Seconds())
}

// RecordSyncSkipped counts a run skipped while offline.
func (c *Collector) RecordSyncSkipped() {
	c.syncSkipped.Inc()
}

// RecordTimestampSource counts one reading per interpretation tier.
func (c *Collector) RecordTimestampSource(source string) {
	c.timestampSource.WithLabelValues(source).Inc()
}

// RecordWearableFailure counts a swallowed mirror error.
func (c *Collector) RecordWearableFailure() {
	c.wearableFailure.Inc()
}

// RecordLogin counts a login attempt labeled "success", "rejected" or
// "error".
func (c *Collector) RecordLogin(outcome string) {
	c.loginAttempts.WithLabelValues(outcome).Inc()
}

// SetBreakerState publishes the current breaker state.
func (c *Collector) SetBreakerState(state float64) {
	c.breakerState.Set(state)
}

// SetLastReading publishes the latest synced value and its timestamp.
func (c *Collector) SetLastReading(valueMgPerDl int, at time.Time) {
	c.lastReading.Set(float64(valueMgPerDl))
	c.lastReadingTime.Set(float64(at.Unix()))
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards every observation. The CLI uses it
// where nothing ever scrapes.
type Nop struct{}

func (Nop) RecordSyncSuccess(time.Duration) {}
func (Nop) RecordSyncFailure(time.Duration) {}
func (Nop) RecordSyncSkipped()              {}
func (Nop) RecordTimestampSource(string)    {}
func (Nop) RecordWearableFailure()          {}
func (Nop) RecordLogin(string)              {}
func (Nop) SetBreakerState(float64)         {}
func (Nop) SetLastReading(int, time.Time)   {}
