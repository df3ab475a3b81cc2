package certpolicy

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"

	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
)

// ErrCertificateRejected matches every RejectedError with errors.Is.
var ErrCertificateRejected = coreErrors.ErrCertificateRejected

// RejectedError is returned from the handshake when a policy refuses the
// presented certificate. It is a validation failure, never a handshake
// failure.
type RejectedError struct {
	ServerName string
	Policy     string
	Errors     PolicyErrors
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("certificate for %q rejected by %s policy (errors: %s)", e.ServerName, e.Policy, e.Errors)
}

func (e *RejectedError) Unwrap() error {
	return coreErrors.ErrCertificateRejected
}

// Evaluate verifies the peer chain of state against roots (nil means the
// system pool) and serverName, and reports what failed.
func Evaluate(state tls.ConnectionState, roots *x509.CertPool, serverName string) PolicyErrors {
	if len(state.PeerCertificates) == 0 {
		return RemoteCertificateNotAvailable
	}

	leaf := state.PeerCertificates[0]
	intermediates := x509.NewCertPool()
	for _, cert := range state.PeerCertificates[1:] {
		intermediates.AddCert(cert)
	}

	var errs PolicyErrors
	if _, err := leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	}); err != nil {
		errs |= RemoteCertificateChainErrors
	}
	if serverName != "" {
		if err := leaf.VerifyHostname(serverName); err != nil {
			errs |= RemoteCertificateNameMismatch
		}
	}
	return errs
}

// VerifyConnection adapts policy to tls.Config.VerifyConnection. The config
// must set InsecureSkipVerify so crypto/tls defers the decision to policy.
// observe, when non-nil, receives every decision.
func VerifyConnection(policy CertificateAcceptancePolicy, roots *x509.CertPool, serverName string, observe func(accepted bool, errs PolicyErrors)) func(tls.ConnectionState) error {
	return func(state tls.ConnectionState) error {
		errs := Evaluate(state, roots, serverName)

		var leaf *x509.Certificate
		if len(state.PeerCertificates) > 0 {
			leaf = state.PeerCertificates[0]
		}

		accepted := policy.Accept(serverName, leaf, state.PeerCertificates, errs)
		if observe != nil {
			observe(accepted, errs)
		}
		if !accepted {
			return &RejectedError{ServerName: serverName, Policy: Name(policy), Errors: errs}
		}
		return nil
	}
}

// Options carries the parameters needed by configurable policies.
type Options struct {
	Pins     []string
	SPIFFEID string
}

// Policy names accepted by ByName.
const (
	NameAcceptAny = "accept-any"
	NameStrict    = "strict"
	NamePinned    = "pinned"
	NameSPIFFE    = "spiffe"
)

// ByName selects a policy from configuration.
func ByName(name string, opts Options) (CertificateAcceptancePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameAcceptAny, "dangerous-accept-any":
		return DangerousAcceptAnyServerCertificate(), nil
	case NameStrict, "":
		return Strict(), nil
	case NamePinned:
		return PinnedSHA256(opts.Pins...)
	case NameSPIFFE:
		return SPIFFEID(opts.SPIFFEID)
	default:
		return nil, fmt.Errorf("unknown certificate policy %q", name)
	}
}
