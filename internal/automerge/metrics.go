package automerge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/optimaxdev/automerge-semantic-release/internal/githubclt"
	"github.com/optimaxdev/automerge-semantic-release/internal/logfields"
)

const metricNamespace = "automerge"

const (
	runsMetricName   = "runs_total"
	mergesMetricName = "merges_total"
)

const (
	outcomeLabel = "outcome"
	resultLabel  = "result"
)

type outcomeLabelVal string

const (
	outcomeLabelSuccessVal           outcomeLabelVal = "success"
	outcomeLabelConflictVal          outcomeLabelVal = "conflict"
	outcomeLabelNoTargetsVal         outcomeLabelVal = "no_targets"
	outcomeLabelUnsupportedBranchVal outcomeLabelVal = "unsupported_branch"
	outcomeLabelFailureVal           outcomeLabelVal = "failure"
)

type metricCollector struct {
	logger *zap.Logger
	runs   *prometheus.CounterVec
	merges *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		runs: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      runsMetricName,
				Help:      "count of automerge runs by outcome",
			},
			[]string{outcomeLabel},
		),
		merges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      mergesMetricName,
				Help:      "count of branch merges by result",
			},
			[]string{resultLabel},
		),
	}
}

func (m *metricCollector) logGetMetricFailed(metricName string, err error) {
	m.logger.Warn(
		"could not record metric",
		zap.String("metric", metricName),
		logfields.Event("recording_metric_failed"),
		zap.Error(err),
	)
}

func (m *metricCollector) RunsInc(outcome outcomeLabelVal) {
	cnt, err := m.runs.GetMetricWith(prometheus.Labels{outcomeLabel: string(outcome)})
	if err != nil {
		m.logGetMetricFailed(runsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) MergesInc(result githubclt.MergeResult) {
	cnt, err := m.merges.GetMetricWith(prometheus.Labels{resultLabel: result.String()})
	if err != nil {
		m.logGetMetricFailed(mergesMetricName, err)
		return
	}

	cnt.Inc()
}
