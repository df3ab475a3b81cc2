// Package metrics provides Prometheus-based implementations of probe metrics reporting.
package metrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/sufield/tlsprobe/internal/core/ports"
)

var (
	handshakeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tlsprobe_handshakes_total",
		Help: "Total number of TLS handshakes attempted",
	}, []string{"side", "version", "result"}) // result: success, failure

	policyDecisionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tlsprobe_policy_decisions_total",
		Help: "Total number of certificate acceptance policy decisions",
	}, []string{"policy", "decision"}) // decision: accept, reject

	scenarioCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tlsprobe_scenarios_total",
		Help: "Total number of scenarios executed",
	}, []string{"result"}) // result: pass, fail, skip

	scenarioDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tlsprobe_scenario_duration_seconds",
		Help:    "Duration of scenario executions",
		Buckets: prometheus.DefBuckets,
	})
)

// PrometheusMetrics implements ports.MetricsReporter using Prometheus.
type PrometheusMetrics struct{}

// NewPrometheusMetrics creates a new Prometheus metrics reporter.
func NewPrometheusMetrics() ports.MetricsReporter {
	return &PrometheusMetrics{}
}

// RecordHandshake records a handshake attempt on one side of a connection.
func (m *PrometheusMetrics) RecordHandshake(side, version string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	handshakeCounter.WithLabelValues(side, version, result).Inc()
}

// RecordPolicyDecision records an acceptance policy verdict.
func (m *PrometheusMetrics) RecordPolicyDecision(policy string, accepted bool) {
	decision := "reject"
	if accepted {
		decision = "accept"
	}
	policyDecisionCounter.WithLabelValues(policy, decision).Inc()
}

// RecordScenario records a finished scenario.
func (m *PrometheusMetrics) RecordScenario(result string, seconds float64) {
	scenarioCounter.WithLabelValues(result).Inc()
	scenarioDuration.Observe(seconds)
}

// WriteText writes the tlsprobe metric families in the Prometheus text format.
func WriteText(w io.Writer, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), "tlsprobe_") {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
