package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sufield/tlsprobe/internal/certs"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
	"github.com/sufield/tlsprobe/internal/loopback"
	"github.com/sufield/tlsprobe/pkg/certpolicy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve exactly one request from a loopback server",
	Long: `Start a single-use loopback server, print its URL and serve exactly one
connection. The server stops after the first exchange, successful or not.

Example:
  tlsprobe serve --protocols tls1.2 --cert-kind expired`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	_, logger, err := settings(cmd, "")
	if err != nil {
		return err
	}

	rawProtocols, _ := cmd.Flags().GetString("protocols")
	protocols, err := domain.ParseProtocolSet(rawProtocols)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	rawKind, _ := cmd.Flags().GetString("cert-kind")
	kind, err := certs.ParseKind(rawKind)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	plain, _ := cmd.Flags().GetBool("plain")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	address, _ := cmd.Flags().GetString("address")
	status, _ := cmd.Flags().GetInt("status")
	body, _ := cmd.Flags().GetString("body")

	opts := loopback.Options{
		Address:    address,
		UseTLS:     !plain,
		Protocols:  protocols,
		StatusCode: status,
		Body:       body,
		Timeout:    timeout,
		Logger:     logger,
	}

	var identity *certs.Identity
	if opts.UseTLS {
		identity, err = certs.Generate(kind, certs.Options{})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
		opts.Certificate = &identity.Certificate
	}

	srv, err := loopback.Listen(opts)
	if err != nil {
		return serveError(err)
	}
	defer srv.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listening on %s\n", srv.URL())
	if identity != nil {
		fmt.Fprintf(out, "Certificate: %s (sha256 %s)\n", identity.Kind, certpolicy.Fingerprint(identity.Leaf))
		fmt.Fprintf(out, "Protocols: %s\n", protocols)
	}

	if err := srv.ServeOnce(cmd.Context()); err != nil {
		return serveError(err)
	}

	if hs, ok := srv.Handshake(); ok {
		writeHandshake(out, &hs)
	}
	fmt.Fprintln(out, "Served one request")
	return nil
}

func serveError(err error) error {
	if errors.Is(err, coreErrors.ErrInvalidOptions) {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrRuntime, coreErrors.Classify(err), err)
}

func init() {
	serveCmd.Flags().String("protocols", "none", "Accepted TLS versions, e.g. tls1.2 or tls1.0|tls1.1 (none = unrestricted)")
	serveCmd.Flags().Bool("plain", false, "Serve plain HTTP instead of HTTPS")
	serveCmd.Flags().String("cert-kind", string(certs.KindSelfSigned), "Server certificate (valid, self-signed, expired, wrong-host, spiffe)")
	serveCmd.Flags().Duration("timeout", loopback.DefaultTimeout, "Bound on the whole exchange")
	serveCmd.Flags().String("address", loopback.DefaultAddress, "Listen address")
	serveCmd.Flags().Int("status", 200, "Response status code")
	serveCmd.Flags().String("body", loopback.DefaultBody, "Response body")
	rootCmd.AddCommand(serveCmd)
}
