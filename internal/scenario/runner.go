package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sufield/tlsprobe/internal/adapters/logging"
	"github.com/sufield/tlsprobe/internal/certs"
	"github.com/sufield/tlsprobe/internal/client"
	"github.com/sufield/tlsprobe/internal/completion"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
	"github.com/sufield/tlsprobe/internal/core/ports"
	"github.com/sufield/tlsprobe/internal/loopback"
	"github.com/sufield/tlsprobe/pkg/certpolicy"
)

// DefaultTimeout bounds one scenario when neither the scenario nor the
// runner sets a timeout.
const DefaultTimeout = 10 * time.Second

// Scenario results recorded in metrics.
const (
	ResultPass = "pass"
	ResultFail = "fail"
	ResultSkip = "skip"
)

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Timeout time.Duration
	// IncludeRemotes enables the outer-loop remotes of a plan.
	IncludeRemotes bool
	Logger         *slog.Logger
	Metrics        ports.MetricsReporter
}

// Runner executes scenarios one at a time.
type Runner struct {
	opts    RunnerOptions
	logger  *slog.Logger
	metrics ports.MetricsReporter
}

// NewRunner creates a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		opts:    opts,
		logger:  logging.OrDefault(opts.Logger).With("component", "scenario"),
		metrics: ports.OrNoOp(opts.Metrics),
	}
}

// RunAll executes every scenario in plan, then its remotes when enabled. All
// reports share the summary's run ID.
func (r *Runner) RunAll(ctx context.Context, plan Plan) Summary {
	summary := Summary{RunID: uuid.NewString()}
	logger := r.logger.With("run_id", summary.RunID)
	logger.Info("Starting run", "scenarios", len(plan.Scenarios), "remotes", len(plan.Remotes))

	for _, sc := range plan.Scenarios {
		report := r.run(ctx, summary.RunID, sc)
		summary.add(report)
	}
	for _, rm := range plan.Remotes {
		report := r.runRemote(ctx, summary.RunID, rm)
		summary.add(report)
	}

	logger.Info("Run finished",
		"passed", summary.Passed,
		"failed", summary.Failed,
		"skipped", summary.Skipped)
	return summary
}

func (s *Summary) add(report Report) {
	s.Reports = append(s.Reports, report)
	switch {
	case report.Skipped:
		s.Skipped++
	case report.Passed:
		s.Passed++
	default:
		s.Failed++
	}
}

// Run executes one loopback scenario under a fresh run ID.
func (r *Runner) Run(ctx context.Context, sc Scenario) Report {
	return r.run(ctx, uuid.NewString(), sc)
}

// RunRemote executes one remote probe under a fresh run ID.
func (r *Runner) RunRemote(ctx context.Context, rm Remote) Report {
	return r.runRemote(ctx, uuid.NewString(), rm)
}

func (r *Runner) run(ctx context.Context, runID string, sc Scenario) Report {
	start := time.Now()
	report := Report{RunID: runID, Name: sc.Name, Expect: expected(sc.Expect)}

	ctx, cancel := context.WithTimeout(ctx, r.timeout(sc.Timeout))
	defer cancel()

	result, err := r.exchange(ctx, sc)
	return r.finish(report, start, result, err)
}

func (r *Runner) runRemote(ctx context.Context, runID string, rm Remote) Report {
	report := Report{RunID: runID, Name: rm.Name, Remote: true, Expect: expected(rm.Expect)}
	if !r.opts.IncludeRemotes {
		report.Skipped = true
		r.metrics.RecordScenario(ResultSkip, 0)
		r.logger.Debug("Skipping remote, outer-loop runs are disabled", "name", rm.Name)
		return report
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.timeout(0))
	defer cancel()

	result, err := r.fetchRemote(ctx, rm)
	return r.finish(report, start, result, err)
}

func (r *Runner) finish(report Report, start time.Time, result *client.Result, err error) Report {
	report.Duration = time.Since(start)
	report.Got = coreErrors.Classify(err)
	report.Passed = report.Got == report.Expect
	if err != nil {
		report.Error = err.Error()
	}
	if result != nil {
		report.Status = result.StatusCode
		report.Handshake = result.Handshake
	}

	outcome := ResultPass
	if !report.Passed {
		outcome = ResultFail
	}
	r.metrics.RecordScenario(outcome, report.Duration.Seconds())
	r.logger.Debug("Scenario finished",
		"run_id", report.RunID,
		"name", report.Name,
		"expect", report.Expect,
		"got", report.Got,
		"error", report.Error)
	return report
}

// exchange wires one loopback server to one driver and joins them so the
// first failure on either side decides the outcome.
func (r *Runner) exchange(ctx context.Context, sc Scenario) (*client.Result, error) {
	if err := domain.ValidateStruct(sc); err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}

	serverOpts := loopback.Options{
		UseTLS:    sc.UseTLS,
		Protocols: sc.ServerProtocols,
		Timeout:   r.timeout(sc.Timeout),
		Logger:    r.logger,
		Metrics:   r.metrics,
	}

	var identity *certs.Identity
	if sc.UseTLS {
		kind := sc.Certificate
		if kind == "" {
			kind = certs.KindSelfSigned
		}
		id, err := certs.Generate(kind, certs.Options{SPIFFEID: sc.SPIFFEID})
		if err != nil {
			return nil, fmt.Errorf("generate %s certificate: %w", kind, err)
		}
		identity = id
		serverOpts.Certificate = &id.Certificate
	}

	policy, err := scenarioPolicy(sc, identity)
	if err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}

	clientOpts := client.Options{
		Policy:    policy,
		Protocols: sc.EffectiveClientProtocols(),
		Timeout:   r.timeout(sc.Timeout),
		Logger:    r.logger,
		Metrics:   r.metrics,
	}
	if sc.TrustRoot && identity != nil {
		clientOpts.RootCAs = identity.Pool()
	}
	driver, err := client.New(clientOpts)
	if err != nil {
		return nil, err
	}

	srv, err := loopback.Listen(serverOpts)
	if err != nil {
		return nil, err
	}
	defer srv.Close()

	var result *client.Result
	err = completion.WhenAllCompletedOrAnyFailed(ctx,
		completion.Task{Name: "server", Run: srv.ServeOnce},
		completion.Task{Name: "client", Run: func(ctx context.Context) error {
			res, err := driver.Get(ctx, srv.URL())
			if err != nil {
				return err
			}
			result = res
			return nil
		}},
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) fetchRemote(ctx context.Context, rm Remote) (*client.Result, error) {
	if err := domain.ValidateStruct(rm); err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}
	policy, err := certpolicy.ByName(rm.Policy, certpolicy.Options{Pins: rm.Pins, SPIFFEID: rm.SPIFFEID})
	if err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}
	driver, err := client.New(client.Options{
		Policy:    policy,
		Protocols: rm.Protocols,
		Timeout:   r.timeout(0),
		Logger:    r.logger,
		Metrics:   r.metrics,
	})
	if err != nil {
		return nil, err
	}
	return driver.Get(ctx, rm.URL)
}

// scenarioPolicy resolves the named policy. Pinned and SPIFFE policies
// default to the generated identity when no pins or ID are given.
func scenarioPolicy(sc Scenario, identity *certs.Identity) (certpolicy.CertificateAcceptancePolicy, error) {
	opts := certpolicy.Options{Pins: sc.Pins, SPIFFEID: sc.SPIFFEID}
	if identity != nil && len(opts.Pins) == 0 {
		opts.Pins = []string{certpolicy.Fingerprint(identity.Leaf)}
	}
	if opts.SPIFFEID == "" {
		opts.SPIFFEID = certs.DefaultSPIFFEID
	}
	policy, err := certpolicy.ByName(sc.Policy, opts)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
	}
	return policy, nil
}

func (r *Runner) timeout(override time.Duration) time.Duration {
	switch {
	case override > 0:
		return override
	case r.opts.Timeout > 0:
		return r.opts.Timeout
	default:
		return DefaultTimeout
	}
}

func expected(c coreErrors.Class) coreErrors.Class {
	if c == "" {
		return coreErrors.ClassNone
	}
	return c
}
