// ABOUTME: Prometheus metrics for the playback engine
// ABOUTME: Counts sessions, sources, underruns and play failures
package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the engine's Prometheus metrics
type Metrics struct {
	SessionsCreated prometheus.Counter
	SourcesAdded    prometheus.Counter
	UnderrunSamples prometheus.Counter
	PlayErrors      prometheus.Counter
}

// newMetrics creates the engine metrics and registers them with reg when it
// is not nil. active reports the number of live sessions.
func newMetrics(reg prometheus.Registerer, active func() float64) *Metrics {
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "playout_sessions_active",
		Help: "Current number of live device sessions",
	}, active)

	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "playout_sessions_created_total",
			Help: "Total number of device sessions created",
		}),
		SourcesAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "playout_sources_added_total",
			Help: "Total number of sources added to sessions",
		}),
		UnderrunSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "playout_underrun_samples_total",
			Help: "Total number of device buffer slots filled with silence",
		}),
		PlayErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "playout_play_errors_total",
			Help: "Total number of Play calls that could not reach a device",
		}),
	}
}
