// Package metrics holds the Prometheus instruments for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RunsTotal counts completed pipeline runs by outcome ("success" or
	// "failure").
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudpipe_runs_total",
		Help: "Completed pipeline runs by outcome",
	}, []string{"outcome"})

	// StageFailures counts run-aborting failures by pipeline stage.
	StageFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fraudpipe_stage_failures_total",
		Help: "Run-aborting failures by pipeline stage",
	}, []string{"stage"})

	// AlertsFired counts advisory fraud alerts.
	AlertsFired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fraudpipe_alerts_fired_total",
		Help: "Fraud alerts raised above the configured threshold",
	})

	// StageLatency observes per-stage wall time in seconds.
	StageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "fraudpipe_stage_latency_seconds",
		Help: "Pipeline stage latency distribution",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(RunsTotal, StageFailures, AlertsFired, StageLatency)
}
