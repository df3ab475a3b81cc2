// Package cli implements the tlsprobe command line: scenario runs, a
// single-use loopback server and single requests through the certificate
// policy driver.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/sufield/tlsprobe/internal/adapters/logging"
	"github.com/sufield/tlsprobe/internal/buildinfo"
	"github.com/sufield/tlsprobe/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "tlsprobe",
	Short: "Exercise TLS clients against single-use loopback servers",
	Long: `Exercise TLS clients against single-use loopback servers.

tlsprobe starts a loopback HTTP(S) server restricted to a set of TLS protocol
versions, issues one request through a client whose server-certificate
decision is made by a configurable acceptance policy, and reports whether the
exchange succeeded or failed with the expected class of error.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
			color.NoColor = true
		}
	},
}

var manCmd = &cobra.Command{
	Use:   "man [directory]",
	Short: "Write tlsprobe(1) manual pages",
	Long: `Write one manual page per tlsprobe command, covering run, serve and get
with their protocol, certificate-kind and policy flags. Pages go to the
current directory unless one is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		header := &doc.GenManHeader{
			Title:   "TLSPROBE",
			Section: "1",
			Source:  "tlsprobe " + buildinfo.Version,
			Manual:  "TLS loopback probes",
		}
		if err := doc.GenManTree(cmd.Root(), header, dir); err != nil {
			return fmt.Errorf("%w: write manual pages to %s: %v", ErrRuntime, dir, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote manual pages to %s\n", dir)
		return nil
	},
}

// Execute runs the root command until completion or interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// settings resolves configuration and builds the command logger. Flags win
// over the file, which wins over TLSPROBE_* variables and defaults.
func settings(cmd *cobra.Command, path string) (*config.Configuration, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.LogFormat = format
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	logger, err := logging.NewLogger(cmd.ErrOrStderr(), level, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return cfg, logger, nil
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); defaults to $"+config.EnvLogLevel+" or warn")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable coloured output")
	rootCmd.AddCommand(manCmd)
}
