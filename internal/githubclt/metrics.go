package githubclt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricNamespace = "worlddriven_github"

const requestsMetricName = "requests_total"

const (
	operationLabel      = "operation"
	credentialTypeLabel = "credential_type"
	resultLabel         = "result"
)

type resultLabelVal string

const (
	resultSuccess           resultLabelVal = "success"
	resultCredentialFailure resultLabelVal = "credential_failure"
	resultRejected          resultLabelVal = "rejected"
	resultAborted           resultLabelVal = "aborted"
)

type metricCollector struct {
	requests *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		requests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      requestsMetricName,
				Help:      "count of github operation attempts per credential type",
			},
			[]string{operationLabel, credentialTypeLabel, resultLabel},
		),
	}
}

func (m *metricCollector) RequestInc(op, credType string, result resultLabelVal) {
	m.requests.WithLabelValues(op, credType, string(result)).Inc()
}
