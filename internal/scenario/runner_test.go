package scenario

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sufield/tlsprobe/internal/adapters/logging"
	"github.com/sufield/tlsprobe/internal/certs"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
	"github.com/sufield/tlsprobe/pkg/certpolicy"
)

type recordingMetrics struct {
	mu        sync.Mutex
	scenarios map[string]int
	decisions map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{scenarios: map[string]int{}, decisions: map[string]int{}}
}

func (m *recordingMetrics) RecordHandshake(string, string, bool) {}

func (m *recordingMetrics) RecordPolicyDecision(policy string, accepted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if accepted {
		m.decisions[policy+"/accept"]++
		return
	}
	m.decisions[policy+"/reject"]++
}

func (m *recordingMetrics) RecordScenario(result string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[result]++
}

func newRunner(opts RunnerOptions) *Runner {
	opts.Logger = logging.Discard()
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	return NewRunner(opts)
}

func TestRun_RestrictedLegacyProtocol(t *testing.T) {
	report := newRunner(RunnerOptions{}).Run(context.Background(), Scenario{
		Name:                    "tls1.0 only",
		UseTLS:                  true,
		ServerProtocols:         domain.Protocols(domain.VersionTLS10),
		RequestOnlyThisProtocol: true,
		Policy:                  certpolicy.NameAcceptAny,
	})

	assert.True(t, report.Passed, report.Error)
	assert.Equal(t, coreErrors.ClassNone, report.Got)
	assert.Equal(t, 200, report.Status)
	require.NotNil(t, report.Handshake)
	assert.Equal(t, domain.VersionTLS10, report.Handshake.Version)

	_, err := uuid.Parse(report.RunID)
	assert.NoError(t, err)
}

func TestRun_ExpectationMismatchFails(t *testing.T) {
	metrics := newRecordingMetrics()
	report := newRunner(RunnerOptions{Metrics: metrics}).Run(context.Background(), Scenario{
		Name:        "strict self-signed expecting success",
		UseTLS:      true,
		Certificate: certs.KindSelfSigned,
		Policy:      certpolicy.NameStrict,
		Expect:      coreErrors.ClassNone,
	})

	assert.False(t, report.Passed)
	assert.Equal(t, coreErrors.ClassValidation, report.Got)
	assert.NotEmpty(t, report.Error)
	assert.Equal(t, 1, metrics.scenarios[ResultFail])
	assert.Equal(t, 1, metrics.decisions["strict/reject"])
}

func TestRun_InvalidScenario(t *testing.T) {
	report := newRunner(RunnerOptions{}).Run(context.Background(), Scenario{
		Name:            "gap",
		UseTLS:          true,
		ServerProtocols: domain.Protocols(domain.VersionTLS10, domain.VersionTLS12),
		Policy:          certpolicy.NameAcceptAny,
		Expect:          coreErrors.ClassInvalid,
	})

	assert.True(t, report.Passed, report.Error)
	assert.Equal(t, coreErrors.ClassInvalid, report.Got)
}

func TestRun_UnknownPolicy(t *testing.T) {
	report := newRunner(RunnerOptions{}).Run(context.Background(), Scenario{
		Name:   "bogus policy",
		UseTLS: true,
		Policy: "trust-me",
	})

	assert.False(t, report.Passed)
	assert.Equal(t, coreErrors.ClassInvalid, report.Got)
}

func TestRunAll_DefaultMatrixPasses(t *testing.T) {
	if testing.Short() {
		t.Skip("runs every loopback exchange of the default matrix")
	}

	metrics := newRecordingMetrics()
	plan := DefaultMatrix()
	summary := newRunner(RunnerOptions{Metrics: metrics}).RunAll(context.Background(), plan)

	for _, r := range summary.Reports {
		if r.Skipped {
			continue
		}
		assert.True(t, r.Passed, "%s: expected %s, got %s (%s)", r.Name, r.Expect, r.Got, r.Error)
		assert.Equal(t, summary.RunID, r.RunID)
	}
	assert.True(t, summary.OK())
	assert.Equal(t, len(plan.Scenarios), summary.Passed)
	assert.Equal(t, len(plan.Remotes), summary.Skipped)
	assert.Equal(t, len(plan.Remotes), metrics.scenarios[ResultSkip])
}

func TestRunAll_RemotesSkippedWithoutOuterLoop(t *testing.T) {
	summary := newRunner(RunnerOptions{}).RunAll(context.Background(), Plan{
		Remotes: []Remote{{Name: "r", URL: "https://expired.badssl.com/", Policy: certpolicy.NameAcceptAny}},
	})

	require.Len(t, summary.Reports, 1)
	assert.True(t, summary.Reports[0].Skipped)
	assert.True(t, summary.Reports[0].Remote)
	assert.Equal(t, 1, summary.Skipped)
	assert.True(t, summary.OK())
}

func TestRunRemote_InvalidURL(t *testing.T) {
	report := newRunner(RunnerOptions{IncludeRemotes: true}).RunRemote(context.Background(), Remote{
		Name:   "plain",
		URL:    "http://example.com/",
		Policy: certpolicy.NameAcceptAny,
		Expect: coreErrors.ClassInvalid,
	})

	assert.False(t, report.Skipped)
	assert.True(t, report.Passed, report.Error)
}

func TestDefaultMatrix_Shape(t *testing.T) {
	plan := DefaultMatrix()

	names := map[string]bool{}
	for _, sc := range plan.Scenarios {
		assert.False(t, names[sc.Name], "duplicate scenario %s", sc.Name)
		names[sc.Name] = true
		require.NoError(t, domain.ValidateStruct(sc), sc.Name)

		if strings.HasPrefix(sc.Name, "disjoint/") {
			assert.False(t, sc.ServerProtocols.Intersects(sc.EffectiveClientProtocols()))
			assert.Equal(t, coreErrors.ClassHandshake, sc.Expect)
		}
	}

	assert.Len(t, plan.Scenarios, len(MatrixProtocols)*2+len(certs.Kinds())+3+6)
	assert.True(t, names["accept-any/tls1.0/only-this-protocol=true"])
	assert.True(t, names["accept-any/none/only-this-protocol=false"])
	assert.NotEmpty(t, plan.Remotes)
}

func TestScenario_EffectiveClientProtocols(t *testing.T) {
	tls12 := domain.Protocols(domain.VersionTLS12)
	tls10 := domain.Protocols(domain.VersionTLS10)

	assert.Equal(t, domain.ProtocolsNone, Scenario{ServerProtocols: tls12}.EffectiveClientProtocols())
	assert.Equal(t, tls12, Scenario{ServerProtocols: tls12, RequestOnlyThisProtocol: true}.EffectiveClientProtocols())
	assert.Equal(t, tls10, Scenario{ServerProtocols: tls12, ClientProtocols: tls10, RequestOnlyThisProtocol: true}.EffectiveClientProtocols())
}
