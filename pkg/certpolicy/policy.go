// Package certpolicy decides whether a TLS server certificate presented to
// an HTTP client is acceptable.
//
// A CertificateAcceptancePolicy replaces the default crypto/tls verification
// step. The policies here range from Strict, which mirrors the normal
// verification outcome, to DangerousAcceptAnyServerCertificate, which
// disables verification entirely and exists only for controlled tests
// against disposable peers.
package certpolicy

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/svid/x509svid"
)

// PolicyErrors is the set of problems found while verifying a presented
// certificate. Policies receive it and decide whether to accept anyway.
type PolicyErrors uint8

const (
	// None means the certificate chain verified and matched the server name.
	None PolicyErrors = 0
	// RemoteCertificateNotAvailable means the server presented no certificate.
	RemoteCertificateNotAvailable PolicyErrors = 1 << iota
	// RemoteCertificateNameMismatch means the leaf does not cover the server name.
	RemoteCertificateNameMismatch
	// RemoteCertificateChainErrors means the chain did not verify against the roots.
	RemoteCertificateChainErrors
)

// Has reports whether all flags in f are set.
func (e PolicyErrors) Has(f PolicyErrors) bool {
	return e&f == f
}

func (e PolicyErrors) String() string {
	if e == None {
		return "none"
	}
	var parts []string
	if e.Has(RemoteCertificateNotAvailable) {
		parts = append(parts, "not-available")
	}
	if e.Has(RemoteCertificateNameMismatch) {
		parts = append(parts, "name-mismatch")
	}
	if e.Has(RemoteCertificateChainErrors) {
		parts = append(parts, "chain-errors")
	}
	return strings.Join(parts, "|")
}

// CertificateAcceptancePolicy decides whether a presented server identity is
// acceptable. Implementations must be side-effect free: the same inputs
// always yield the same answer.
//
// serverName is the name the client dialed and may be empty. leaf and chain
// may be nil when the server sent nothing.
type CertificateAcceptancePolicy interface {
	Accept(serverName string, leaf *x509.Certificate, chain []*x509.Certificate, errs PolicyErrors) bool
}

type dangerousAcceptAny struct {
	name string
}

// acceptAny is the single process-wide instance; it holds no mutable state.
var acceptAny = &dangerousAcceptAny{name: "dangerous-accept-any"}

// DangerousAcceptAnyServerCertificate returns a policy that accepts every
// server certificate: expired, self-signed, issued for another host, or
// missing altogether.
//
// DANGER: installing this policy turns TLS into unauthenticated encryption.
// It exists for tests against loopback peers. Never select it for real
// traffic.
//
// Every call returns the same instance, so callers may compare by identity.
func DangerousAcceptAnyServerCertificate() CertificateAcceptancePolicy {
	return acceptAny
}

func (p *dangerousAcceptAny) Accept(string, *x509.Certificate, []*x509.Certificate, PolicyErrors) bool {
	return true
}

func (p *dangerousAcceptAny) String() string {
	return p.name
}

type strict struct{}

// Strict accepts only certificates that verified cleanly.
func Strict() CertificateAcceptancePolicy {
	return strict{}
}

func (strict) Accept(_ string, _ *x509.Certificate, _ []*x509.Certificate, errs PolicyErrors) bool {
	return errs == None
}

func (strict) String() string {
	return "strict"
}

type pinned struct {
	fingerprints map[string]struct{}
}

// PinnedSHA256 accepts a leaf whose SHA-256 fingerprint is one of pins,
// ignoring chain and name errors. Pins are hex, colons optional.
func PinnedSHA256(pins ...string) (CertificateAcceptancePolicy, error) {
	if len(pins) == 0 {
		return nil, fmt.Errorf("at least one pin is required")
	}
	set := make(map[string]struct{}, len(pins))
	for _, pin := range pins {
		normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(pin), ":", ""))
		if raw, err := hex.DecodeString(normalized); err != nil || len(raw) != sha256.Size {
			return nil, fmt.Errorf("invalid SHA-256 pin %q", pin)
		}
		set[normalized] = struct{}{}
	}
	return &pinned{fingerprints: set}, nil
}

func (p *pinned) Accept(_ string, leaf *x509.Certificate, _ []*x509.Certificate, errs PolicyErrors) bool {
	if leaf == nil || errs.Has(RemoteCertificateNotAvailable) {
		return false
	}
	_, ok := p.fingerprints[Fingerprint(leaf)]
	return ok
}

func (p *pinned) String() string {
	return "pinned"
}

// Fingerprint returns the lowercase hex SHA-256 of the certificate DER.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

type spiffeIDPolicy struct {
	expected spiffeid.ID
}

// SPIFFEID accepts a leaf carrying exactly the expected SPIFFE ID as its URI
// SAN. Chain errors are ignored; pair it with a trust bundle for anything
// beyond tests.
func SPIFFEID(expected string) (CertificateAcceptancePolicy, error) {
	id, err := spiffeid.FromString(expected)
	if err != nil {
		return nil, fmt.Errorf("invalid SPIFFE ID %q: %w", expected, err)
	}
	return &spiffeIDPolicy{expected: id}, nil
}

func (p *spiffeIDPolicy) Accept(_ string, leaf *x509.Certificate, _ []*x509.Certificate, _ PolicyErrors) bool {
	if leaf == nil {
		return false
	}
	id, err := x509svid.IDFromCert(leaf)
	if err != nil {
		return false
	}
	return id.String() == p.expected.String()
}

func (p *spiffeIDPolicy) String() string {
	return "spiffe"
}

// Name returns a short label for logs and metrics.
func Name(p CertificateAcceptancePolicy) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}
