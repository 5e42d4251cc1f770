// Package metrics provides Prometheus metrics for saved-item synchronization.
// Errors that the sync engine recovers from silently are counted here so
// that they stay observable.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Remote operation labels
const (
	OpListKeys   = "list"
	OpImportKeys = "import"
	OpAddKey     = "add"
	OpRemoveKey  = "remove"
)

// Hydration outcome labels
const (
	HydrationResolved = "resolved"
	HydrationFailed   = "failed"
)

// Store labels for malformed blob counts
const (
	StoreKeys    = "keys"
	StoreRecords = "records"
	StoreLegacy  = "legacy"
)

// Metrics contains all saved-item sync metrics.
type Metrics struct {
	RemoteFailuresTotal   *prometheus.CounterVec // Remote saved-set failures by operation
	HydrationsTotal       *prometheus.CounterVec // Catalog fetches by outcome
	KeysEvictedTotal      prometheus.Counter     // Keys dropped to respect the key store budget
	MalformedBlobsTotal   *prometheus.CounterVec // Corrupt persisted blobs by store
	LegacyMigrationsTotal prometheus.Counter     // Completed legacy migrations
	SavedKeys             prometheus.Gauge       // Saved keys after the latest load or toggle
	LoadDurationSeconds   prometheus.Histogram
}

// New creates a new Metrics instance with all metrics registered with reg. A
// nil reg registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		RemoteFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "savedsync_remote_failures_total",
			Help: "Total number of failed remote saved-set calls by operation",
		}, []string{"op"}),

		HydrationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "savedsync_hydrations_total",
			Help: "Total number of catalog record fetches by outcome",
		}, []string{"outcome"}),

		KeysEvictedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "savedsync_keys_evicted_total",
			Help: "Total number of saved keys dropped to fit the key store budget",
		}),

		MalformedBlobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "savedsync_malformed_blobs_total",
			Help: "Total number of persisted blobs that could not be decoded, by store",
		}, []string{"store"}),

		LegacyMigrationsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "savedsync_legacy_migrations_total",
			Help: "Total number of legacy saved-item blobs migrated",
		}),

		SavedKeys: f.NewGauge(prometheus.GaugeOpts{
			Name: "savedsync_saved_keys",
			Help: "Number of saved keys after the most recent load or toggle",
		}),

		LoadDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "savedsync_load_duration_seconds",
			Help:    "Duration of saved item loads",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Nop returns Metrics registered with a throwaway registry, for callers that
// don't export metrics.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}

// RecordRemoteFailure counts a failed remote call.
func (m *Metrics) RecordRemoteFailure(op string) {
	m.RemoteFailuresTotal.WithLabelValues(op).Inc()
}

// RecordHydration counts a catalog fetch outcome.
func (m *Metrics) RecordHydration(outcome string) {
	m.HydrationsTotal.WithLabelValues(outcome).Inc()
}

// RecordEvictions counts keys evicted by trimming.
func (m *Metrics) RecordEvictions(n int) {
	m.KeysEvictedTotal.Add(float64(n))
}

// RecordMalformed counts a corrupt blob.
func (m *Metrics) RecordMalformed(store string) {
	m.MalformedBlobsTotal.WithLabelValues(store).Inc()
}

// RecordMigration counts a completed legacy migration.
func (m *Metrics) RecordMigration() {
	m.LegacyMigrationsTotal.Inc()
}

// SetSavedKeys updates the saved key gauge.
func (m *Metrics) SetSavedKeys(n int) {
	m.SavedKeys.Set(float64(n))
}

// ObserveLoadDuration records how long a load took.
func (m *Metrics) ObserveLoadDuration(seconds float64) {
	m.LoadDurationSeconds.Observe(seconds)
}
