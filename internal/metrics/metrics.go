// Package metrics exposes refresh-cycle and store counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the service registers.
type Metrics struct {
	Cycles        *prometheus.CounterVec
	SkippedTicks  prometheus.Counter
	Signals       prometheus.Counter
	Malformed     prometheus.Counter
	Dropped       prometheus.Counter
	Upserts       prometheus.Counter
	SynthFailures prometheus.Counter
	Evicted       prometheus.Counter
	StoreSize     prometheus.Gauge
	LastSuccess   prometheus.Gauge
}

// New registers all collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trendstory_cycles_total",
			Help: "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		SkippedTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "trendstory_skipped_ticks_total",
			Help: "Scheduler ticks skipped because a cycle was in flight or backoff was active.",
		}),
		Signals: factory.NewCounter(prometheus.CounterOpts{
			Name: "trendstory_signals_total",
			Help: "Raw trend signals fetched from providers.",
		}),
		Malformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "trendstory_malformed_signals_total",
			Help: "Provider messages skipped because the payload failed to decode.",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "trendstory_signals_dropped_total",
			Help: "Signals dropped during normalization.",
		}),
		Upserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "trendstory_story_upserts_total",
			Help: "Story artifacts committed to the store.",
		}),
		SynthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "trendstory_synth_failures_total",
			Help: "Per-trend synthesis failures.",
		}),
		Evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "trendstory_stories_evicted_total",
			Help: "Artifacts hard-deleted past TTL plus grace.",
		}),
		StoreSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trendstory_store_size",
			Help: "Artifacts currently held by the store.",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trendstory_last_success_timestamp_seconds",
			Help: "Unix time of the last fully successful refresh cycle.",
		}),
	}
}
