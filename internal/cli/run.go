package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sufield/tlsprobe/internal/adapters/metrics"
	"github.com/sufield/tlsprobe/internal/config"
	"github.com/sufield/tlsprobe/internal/scenario"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenario matrix",
	Long: `Run loopback scenarios and compare each outcome with its expected class.

Without --config the built-in matrix runs: the accept-any policy against every
protocol set with and without restricting the client, every certificate kind,
disjoint protocol sets and the verifying policies.

Remote scenarios contact public endpoints and only run with --outerloop,
outerloop: true in the configuration file, or ` + config.EnvOuterLoop + `=true.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, logger, err := settings(cmd, path)
	if err != nil {
		return err
	}

	plan := scenario.DefaultMatrix()
	if cfg.HasPlan() {
		plan = cfg.Plan()
	}

	outerLoop, _ := cmd.Flags().GetBool("outerloop")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = cfg.Timeout
	}

	runner := scenario.NewRunner(scenario.RunnerOptions{
		Timeout:        timeout,
		IncludeRemotes: outerLoop || cfg.OuterLoop || config.OuterLoopEnabled(),
		Logger:         logger,
		Metrics:        metrics.NewPrometheusMetrics(),
	})
	summary := runner.RunAll(cmd.Context(), plan)

	out := cmd.OutOrStdout()
	if err := writeSummary(out, format, summary); err != nil {
		return err
	}

	if showMetrics, _ := cmd.Flags().GetBool("metrics"); showMetrics {
		fmt.Fprintln(out)
		if err := metrics.WriteText(out, prometheus.DefaultGatherer); err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}

	if !summary.OK() {
		return fmt.Errorf("%w: %d of %d scenarios did not match their expectation",
			ErrScenarioFailed, summary.Failed, summary.Passed+summary.Failed)
	}
	return nil
}

func init() {
	runCmd.Flags().StringP("config", "c", "", "Scenario configuration file (YAML)")
	runCmd.Flags().String("format", formatText, "Output format (text, json, yaml)")
	runCmd.Flags().Bool("outerloop", false, "Also run remote scenarios against public endpoints")
	runCmd.Flags().Duration("timeout", 0, "Per-scenario timeout (default from configuration)")
	runCmd.Flags().Bool("metrics", false, "Print Prometheus metrics after the run")
	rootCmd.AddCommand(runCmd)
}
