// Package observability defines the engine's Prometheus metrics,
// following the teacher's metrics.go Collector-singleton pattern:
// package-level CounterVec/HistogramVec registered once behind a
// sync.Once, with accessor methods the rest of the codebase calls
// instead of touching the registry directly.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector bundles every metric the engine emits.
type Collector struct {
	IngestTotal           *prometheus.CounterVec
	IngestDuration        *prometheus.HistogramVec
	FeatureExtractionMode *prometheus.CounterVec
	SalienceScore         prometheus.Histogram
	TierTransitions       *prometheus.CounterVec
	RetrievalDuration     *prometheus.HistogramVec
	GateSuppressions      prometheus.Counter
	LoopsOpened           prometheus.Counter
	LoopsClosed           *prometheus.CounterVec
	PatternConfidence     *prometheus.GaugeVec
	CircuitBreakerState   *prometheus.GaugeVec
	SideEffectTasks       *prometheus.CounterVec
	SideEffectQueueDepth  prometheus.Gauge
}

var (
	once     sync.Once
	instance *Collector
)

// Get returns the process-wide Collector, registering its metrics with
// the default Prometheus registry on first call.
func Get() *Collector {
	once.Do(func() {
		instance = &Collector{
			IngestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "relevance_engine_ingest_total",
				Help: "Total store_memory invocations by outcome.",
			}, []string{"outcome"}),
			IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "relevance_engine_ingest_duration_seconds",
				Help:    "Latency of the ingest orchestrator's synchronous path.",
				Buckets: prometheus.DefBuckets,
			}, []string{"stage"}),
			FeatureExtractionMode: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "relevance_engine_feature_extraction_total",
				Help: "Feature extraction invocations by resolved mode.",
			}, []string{"mode"}),
			SalienceScore: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "relevance_engine_salience_score",
				Help:    "Distribution of computed salience scores.",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			}),
			TierTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "relevance_engine_tier_transitions_total",
				Help: "Memory tier transitions by from/to tier.",
			}, []string{"from", "to"}),
			RetrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "relevance_engine_retrieval_duration_seconds",
				Help:    "Latency of recall/whats_relevant queries.",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation"}),
			GateSuppressions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "relevance_engine_gate_suppressions_total",
				Help: "Candidates suppressed by the context gate.",
			}),
			LoopsOpened: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "relevance_engine_loops_opened_total",
				Help: "Open loops created by the commitment tracker.",
			}),
			LoopsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "relevance_engine_loops_closed_total",
				Help: "Open loops closed, by terminal state.",
			}, []string{"state"}),
			PatternConfidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "relevance_engine_pattern_confidence",
				Help: "Latest detected periodicity confidence per slot.",
			}, []string{"slot"}),
			CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "relevance_engine_circuit_breaker_state",
				Help: "Language backend circuit breaker state (0=closed,1=half-open,2=open).",
			}, []string{"backend"}),
			SideEffectTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "relevance_engine_side_effect_tasks_total",
				Help: "Background side-effect tasks by outcome (succeeded, retried, failed, panicked).",
			}, []string{"outcome"}),
			SideEffectQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "relevance_engine_side_effect_queue_depth",
				Help: "Pending tasks queued on the ingest side-effect worker pool.",
			}),
		}
		prometheus.MustRegister(
			instance.IngestTotal,
			instance.IngestDuration,
			instance.FeatureExtractionMode,
			instance.SalienceScore,
			instance.TierTransitions,
			instance.RetrievalDuration,
			instance.GateSuppressions,
			instance.LoopsOpened,
			instance.LoopsClosed,
			instance.PatternConfidence,
			instance.CircuitBreakerState,
			instance.SideEffectTasks,
			instance.SideEffectQueueDepth,
		)
	})
	return instance
}
