package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "worlddriven_orchestrator"

const (
	sweepsMetricName                = "sweeps_total"
	sweepDurationMetricName         = "sweep_duration_seconds"
	processedPullRequestsMetricName = "processed_pull_requests_total"
	githubEventsMetricName          = "processed_github_events_total"
)

const (
	actionLabel = "action"
	resultLabel = "result"
)

type metricCollector struct {
	sweeps                *prometheus.CounterVec
	sweepDuration         prometheus.Histogram
	processedPullRequests *prometheus.CounterVec
	processedEvents       prometheus.Counter
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		sweeps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      sweepsMetricName,
				Help:      "count of finished sweeps",
			},
			[]string{resultLabel},
		),
		sweepDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricNamespace,
				Name:      sweepDurationMetricName,
				Help:      "duration of sweeps",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		processedPullRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      processedPullRequestsMetricName,
				Help:      "count of processed pull requests",
			},
			[]string{actionLabel, resultLabel},
		),
		processedEvents: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      githubEventsMetricName,
				Help:      "count of processed github webhook events",
			},
		),
	}
}

func (m *metricCollector) SweepFinished(result *SweepResult, duration time.Duration) {
	resultVal := "success"
	if result.ErrorCount > 0 {
		resultVal = "failed"
	}

	m.sweeps.WithLabelValues(resultVal).Inc()
	m.sweepDuration.Observe(duration.Seconds())
}

func (m *metricCollector) ProcessedPullRequestInc(outcome *PullRequestOutcome) {
	m.processedPullRequests.WithLabelValues(string(outcome.Action), string(outcome.Result)).Inc()
}

func (m *metricCollector) ProcessedEventsInc() {
	m.processedEvents.Inc()
}
