// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "videoscribe"

// Resolution tiers reported by the reconciler.
const (
	TierURL         = "url"
	TierID          = "id"
	TierCache       = "cache"
	TierSynthesized = "synthesized"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Upload pipeline
	UploadsTotal   *prometheus.CounterVec
	UploadBytes    prometheus.Counter
	Transcriptions *prometheus.CounterVec

	// Reconciler
	ReconcileRuns        prometheus.Counter
	ReconcileFallbacks   prometheus.Counter
	ReconcileResolutions *prometheus.CounterVec
	ReconcileCollisions  prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates and registers all metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload attempts by result (ok, rejected, failed)",
		}, []string{"result"}),
		UploadBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes of video successfully stored",
		}),
		Transcriptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Finished transcriptions by final video status",
		}, []string{"status"}),
		ReconcileRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation runs",
		}),
		ReconcileFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_fallbacks_total",
			Help:      "Reconciliation runs that degraded to cached data",
		}),
		ReconcileResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_resolutions_total",
			Help:      "Blobs resolved per matching tier",
		}, []string{"tier"}),
		ReconcileCollisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_id_collisions_total",
			Help:      "Blobs whose derived id was already taken in the same run",
		}),
	}
}
