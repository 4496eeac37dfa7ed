package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "video_evaluation"

var (
	PipelineRuns       *prometheus.CounterVec
	PipelineDuration   *prometheus.HistogramVec
	ProviderFailures   *prometheus.CounterVec
	EvaluatorFallbacks *prometheus.CounterVec
	DispatcherQueued   prometheus.Gauge
)

func init() {
	PipelineRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "pipeline_runs_total",
		Help:      "Number of pipeline runs by outcome",
		Subsystem: subsystem,
	},
		[]string{"outcome"},
	)
	PipelineDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "pipeline_duration_seconds",
		Help:      "Time spent evaluating one video after it was claimed",
		Subsystem: subsystem,
		Buckets:   []float64{5, 15, 30, 60, 120, 300},
	},
		[]string{"outcome"},
	)
	ProviderFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "provider_failures_total",
		Help:      "Failed calls to transcript and emotion providers",
		Subsystem: subsystem,
	},
		[]string{"provider", "code"},
	)
	EvaluatorFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "evaluator_fallbacks_total",
		Help:      "Evaluations that degraded to a neutral score",
		Subsystem: subsystem,
	},
		[]string{"evaluator"},
	)
	DispatcherQueued = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "dispatcher_queued_tasks",
		Help:      "Tasks waiting for a dispatcher worker",
		Subsystem: subsystem,
	})

	prometheus.MustRegister(PipelineRuns)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(ProviderFailures)
	prometheus.MustRegister(EvaluatorFallbacks)
	prometheus.MustRegister(DispatcherQueued)
}
