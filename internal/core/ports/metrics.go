// Package ports declares the interfaces the probe core depends on.
package ports

// Handshake sides.
const (
	SideClient = "client"
	SideServer = "server"
)

// MetricsReporter interface for reporting metrics
type MetricsReporter interface {
	RecordHandshake(side, version string, success bool)
	RecordPolicyDecision(policy string, accepted bool)
	RecordScenario(result string, seconds float64)
}

// NoOpMetrics implements MetricsReporter with no-op methods for when metrics are disabled
type NoOpMetrics struct{}

// RecordHandshake no-op implementation
func (NoOpMetrics) RecordHandshake(string, string, bool) {}

// RecordPolicyDecision no-op implementation
func (NoOpMetrics) RecordPolicyDecision(string, bool) {}

// RecordScenario no-op implementation
func (NoOpMetrics) RecordScenario(string, float64) {}

// OrNoOp returns m, or NoOpMetrics when m is nil.
func OrNoOp(m MetricsReporter) MetricsReporter {
	if m == nil {
		return NoOpMetrics{}
	}
	return m
}
