package mergetrain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/logfields"
)

const metricNamespace = "fedora_bot_mergetrain"

const (
	evaluationsMetricName   = "pr_evaluations_total"
	mergesMetricName        = "pr_merges_total"
	mergeFailuresMetricName = "pr_merge_failures_total"
)

const (
	componentLabel = "component"
	decisionLabel  = "decision"
)

type metricCollector struct {
	logger        *zap.Logger
	evaluations   *prometheus.CounterVec
	merges        *prometheus.CounterVec
	mergeFailures *prometheus.CounterVec
}

var metrics = newMetricCollector()

func newMetricCollector() *metricCollector {
	return &metricCollector{
		logger: zap.L().Named(loggerName).Named("metrics"),
		evaluations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      evaluationsMetricName,
				Help:      "count of pull request merge decisions",
			},
			[]string{componentLabel, decisionLabel},
		),
		merges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      mergesMetricName,
				Help:      "count of merged pull requests",
			},
			[]string{componentLabel},
		),
		mergeFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricNamespace,
				Name:      mergeFailuresMetricName,
				Help:      "count of failed pull request merge calls",
			},
			[]string{componentLabel},
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

func (m *metricCollector) EvaluationsInc(component string, decision Decision) {
	cnt, err := m.evaluations.GetMetricWith(prometheus.Labels{
		componentLabel: component,
		decisionLabel:  decision.String(),
	})
	if err != nil {
		m.logGetMetricFailed(evaluationsMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) MergesInc(component string) {
	cnt, err := m.merges.GetMetricWith(prometheus.Labels{componentLabel: component})
	if err != nil {
		m.logGetMetricFailed(mergesMetricName, err)
		return
	}

	cnt.Inc()
}

func (m *metricCollector) MergeFailuresInc(component string) {
	cnt, err := m.mergeFailures.GetMetricWith(prometheus.Labels{componentLabel: component})
	if err != nil {
		m.logGetMetricFailed(mergeFailuresMetricName, err)
		return
	}

	cnt.Inc()
}
