package cli

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sufield/tlsprobe/internal/client"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
	"github.com/sufield/tlsprobe/pkg/certpolicy"
)

var getCmd = &cobra.Command{
	Use:   "get URL",
	Short: "Issue one request through a certificate acceptance policy",
	Long: `Issue exactly one GET request and print the negotiated TLS session.

The server certificate is judged by --policy:
  strict        accept only chains that verify against the roots and name
  accept-any    accept every certificate (test use only)
  pinned        accept certificates whose SHA-256 matches --pin
  spiffe        accept certificates carrying --spiffe-id

Example:
  tlsprobe get https://127.0.0.1:8443/ --policy pinned --pin 3f2a...`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	_, logger, err := settings(cmd, "")
	if err != nil {
		return err
	}

	policyName, _ := cmd.Flags().GetString("policy")
	pins, _ := cmd.Flags().GetStringSlice("pin")
	spiffeID, _ := cmd.Flags().GetString("spiffe-id")
	policy, err := certpolicy.ByName(policyName, certpolicy.Options{Pins: pins, SPIFFEID: spiffeID})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	rawProtocols, _ := cmd.Flags().GetString("protocols")
	protocols, err := domain.ParseProtocolSet(rawProtocols)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	opts := client.Options{
		Policy:    policy,
		Protocols: protocols,
		Logger:    logger,
	}
	opts.ServerName, _ = cmd.Flags().GetString("server-name")
	opts.Timeout, _ = cmd.Flags().GetDuration("timeout")

	if caFile, _ := cmd.Flags().GetString("ca-file"); caFile != "" {
		roots, err := loadRoots(caFile)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		opts.RootCAs = roots
	}

	driver, err := client.New(opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	result, err := driver.Get(cmd.Context(), args[0])
	if err != nil {
		if errors.Is(err, coreErrors.ErrInvalidOptions) {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		return fmt.Errorf("%w: %s: %v", ErrRuntime, coreErrors.Classify(err), err)
	}

	return writeResult(cmd.OutOrStdout(), format, result)
}

func loadRoots(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no PEM certificates found in %s", path)
	}
	return pool, nil
}

func init() {
	getCmd.Flags().String("policy", certpolicy.NameStrict, "Certificate acceptance policy (strict, accept-any, pinned, spiffe)")
	getCmd.Flags().String("protocols", "none", "Offered TLS versions, e.g. tls1.2 or tls1.0|tls1.1 (none = crypto/tls defaults)")
	getCmd.Flags().StringSlice("pin", nil, "SHA-256 certificate fingerprint for the pinned policy (repeatable)")
	getCmd.Flags().String("spiffe-id", "", "Expected SPIFFE ID for the spiffe policy")
	getCmd.Flags().String("server-name", "", "Name to verify instead of the URL host")
	getCmd.Flags().String("ca-file", "", "PEM file of trusted roots for the strict policy")
	getCmd.Flags().Duration("timeout", client.DefaultTimeout, "Request timeout")
	getCmd.Flags().String("format", formatText, "Output format (text, json, yaml)")
	rootCmd.AddCommand(getCmd)
}
