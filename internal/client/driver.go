// Package client issues single HTTP(S) requests through an http.Client whose
// server-certificate decision is delegated to a certpolicy policy.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sufield/tlsprobe/internal/adapters/logging"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
	"github.com/sufield/tlsprobe/internal/core/ports"
	"github.com/sufield/tlsprobe/pkg/certpolicy"
)

// DefaultTimeout bounds one request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options configures a Driver. Policy is mandatory: there is no implicit
// default, so the accept-any policy is only ever installed on purpose.
type Options struct {
	Policy     certpolicy.CertificateAcceptancePolicy `validate:"-"`
	Protocols  domain.ProtocolSet                     `validate:"protocols"`
	RootCAs    *x509.CertPool                         `validate:"-"`
	ServerName string                                 `validate:"omitempty,hostname_rfc1123|ip"`
	Timeout    time.Duration                          `validate:"duration"`
	Logger     *slog.Logger                           `validate:"-"`
	Metrics    ports.MetricsReporter                  `validate:"-"`
}

// Result describes one completed request. The response body has already been
// drained and closed.
type Result struct {
	URL        string                  `json:"url" yaml:"url"`
	StatusCode int                     `json:"status_code" yaml:"status_code"`
	Handshake  *domain.HandshakeResult `json:"handshake,omitempty" yaml:"handshake,omitempty"`
	Duration   time.Duration           `json:"duration" yaml:"duration"`
}

// Driver sends requests without connection reuse; every Get dials afresh.
type Driver struct {
	opts    Options
	client  *http.Client
	dialer  *net.Dialer
	logger  *slog.Logger
	metrics ports.MetricsReporter
}

// New builds a Driver from opts.
func New(opts Options) (*Driver, error) {
	if opts.Policy == nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, errors.New("a certificate acceptance policy is required"))
	}
	if err := domain.ValidateStruct(opts); err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	d := &Driver{
		opts:    opts,
		dialer:  &net.Dialer{Timeout: timeout},
		logger:  logging.OrDefault(opts.Logger).With("component", "client", "policy", certpolicy.Name(opts.Policy)),
		metrics: ports.OrNoOp(opts.Metrics),
	}

	transport := &http.Transport{
		Proxy:             nil,
		DialContext:       d.dial,
		DialTLSContext:    d.dialTLS,
		DisableKeepAlives: true,
		// A non-nil empty map turns HTTP/2 off.
		TLSNextProto:          map[string]func(string, *tls.Conn) http.RoundTripper{},
		ResponseHeaderTimeout: timeout,
	}
	d.client = &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return d, nil
}

// Get issues exactly one GET to url, drains and closes the body.
func (d *Driver) Get(ctx context.Context, url string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, d.classify(ctx, url, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrProtocol, fmt.Errorf("read response body: %w", err))
	}

	result := &Result{
		URL:        url,
		StatusCode: resp.StatusCode,
		Duration:   time.Since(start),
	}
	if resp.TLS != nil {
		hs := domain.NewHandshakeResult(*resp.TLS)
		result.Handshake = &hs
	}

	d.logger.Debug("Request completed",
		"url", url,
		"status", resp.StatusCode,
		"duration", result.Duration)
	return result, nil
}

// classify makes sure every failure carries a domain kind. Errors from our
// dialers already do; anything else happened after the connection was up.
func (d *Driver) classify(ctx context.Context, url string, err error) error {
	var domainErr *coreErrors.DomainError
	if errors.As(err, &domainErr) {
		return fmt.Errorf("GET %s: %w", url, err)
	}
	if ctx.Err() != nil {
		return coreErrors.NewDomainError(coreErrors.ErrConnectionFailed, fmt.Errorf("GET %s: %w", url, err))
	}
	return coreErrors.NewDomainError(coreErrors.ErrProtocol, fmt.Errorf("GET %s: %w", url, err))
}

func (d *Driver) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, coreErrors.NewDomainError(coreErrors.ErrConnectionFailed, err)
	}
	return conn, nil
}

func (d *Driver) dialTLS(ctx context.Context, network, addr string) (net.Conn, error) {
	raw, err := d.dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	serverName := d.opts.ServerName
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			_ = raw.Close()
			return nil, coreErrors.NewDomainError(coreErrors.ErrConnectionFailed, err)
		}
		serverName = host
	}

	policyName := certpolicy.Name(d.opts.Policy)
	cfg := &tls.Config{
		ServerName: serverName,
		// Verification is delegated to the policy through VerifyConnection.
		InsecureSkipVerify: true, //nolint:gosec // policy decides
		VerifyConnection: certpolicy.VerifyConnection(d.opts.Policy, d.opts.RootCAs, serverName,
			func(accepted bool, errs certpolicy.PolicyErrors) {
				d.metrics.RecordPolicyDecision(policyName, accepted)
				d.logger.Debug("Certificate policy decision",
					"server_name", serverName,
					"accepted", accepted,
					"policy_errors", errs.String())
			}),
	}
	if err := d.opts.Protocols.Apply(cfg); err != nil {
		_ = raw.Close()
		return nil, coreErrors.NewDomainError(coreErrors.ErrInvalidOptions, err)
	}
	if d.opts.Protocols.IsNone() {
		// Unrestricted offers every version the loopback server can accept.
		cfg.MinVersion = tls.VersionTLS10 //nolint:gosec // legacy peers are part of the matrix
	}

	conn := tls.Client(raw, cfg)
	if err := conn.HandshakeContext(ctx); err != nil {
		_ = raw.Close()
		d.metrics.RecordHandshake(ports.SideClient, "none", false)
		if errors.Is(err, certpolicy.ErrCertificateRejected) {
			return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		return nil, coreErrors.NewDomainError(coreErrors.ErrHandshakeFailed, err)
	}

	version := domain.VersionFromUint16(conn.ConnectionState().Version)
	d.metrics.RecordHandshake(ports.SideClient, version.String(), true)
	d.logger.Debug("Handshake complete", "addr", addr, "version", version.String())
	return conn, nil
}
