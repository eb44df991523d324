package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	UnitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cppmsplit_units_total",
		Help: "Total number of module units processed, by outcome.",
	}, []string{"status"})

	TranslationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cppmsplit_translation_seconds",
		Help:    "Time spent translating and writing one module unit.",
		Buckets: prometheus.DefBuckets,
	})

	ConstructsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cppmsplit_constructs_total",
		Help: "Total number of recognized constructs, by kind.",
	}, []string{"kind"})

	FailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cppmsplit_failures_total",
		Help: "Total number of failed translations, by error code.",
	}, []string{"code"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cppmsplit_runs_total",
		Help: "Total number of batch runs, by mode.",
	}, []string{"mode"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cppmsplit_run_seconds",
		Help:    "Time spent on a batch run.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cppmsplit_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	RemovedOutputsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cppmsplit_removed_outputs_total",
		Help: "Total number of generated pairs deleted after their unit was removed.",
	})
)
