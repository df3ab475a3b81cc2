// Package certs generates throwaway server identities for loopback peers:
// valid, self-signed, expired, wrong-host and SPIFFE-bearing certificates.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"strings"
	"time"
)

// Kind selects the flavour of identity to generate.
type Kind string

const (
	KindValid      Kind = "valid"
	KindSelfSigned Kind = "self-signed"
	KindExpired    Kind = "expired"
	KindWrongHost  Kind = "wrong-host"
	KindSPIFFE     Kind = "spiffe"
)

// Kinds lists every supported kind.
func Kinds() []Kind {
	return []Kind{KindValid, KindSelfSigned, KindExpired, KindWrongHost, KindSPIFFE}
}

// ParseKind parses a configuration string.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if k == "" {
		return KindSelfSigned, nil
	}
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown certificate kind %q", s)
}

// DefaultHosts are the names a loopback identity covers.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// WrongHost is the only name covered by KindWrongHost identities.
const WrongHost = "wrong.host.invalid"

// DefaultSPIFFEID is embedded by KindSPIFFE identities unless overridden.
const DefaultSPIFFEID = "spiffe://tlsprobe.test/loopback"

// Options tunes generation.
type Options struct {
	Hosts    []string
	SPIFFEID string
	Now      func() time.Time
}

// Identity is a generated server certificate plus the root that issued it.
// For self-signed identities Root is the leaf itself.
type Identity struct {
	Kind        Kind
	Certificate tls.Certificate
	Leaf        *x509.Certificate
	Root        *x509.Certificate
}

// Pool returns a cert pool trusting the identity's root.
func (id *Identity) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(id.Root)
	return pool
}

// Generate creates a new identity of the given kind.
func Generate(kind Kind, opts Options) (*Identity, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	hosts := opts.Hosts
	if len(hosts) == 0 {
		hosts = DefaultHosts
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate leaf key: %w", err)
	}

	template, err := leafTemplate(now())
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindValid, KindSelfSigned:
		setHosts(template, hosts)
	case KindExpired:
		setHosts(template, hosts)
		template.NotBefore = now().Add(-48 * time.Hour)
		template.NotAfter = now().Add(-24 * time.Hour)
	case KindWrongHost:
		setHosts(template, []string{WrongHost})
	case KindSPIFFE:
		setHosts(template, hosts)
		raw := opts.SPIFFEID
		if raw == "" {
			raw = DefaultSPIFFEID
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse SPIFFE ID: %w", err)
		}
		template.URIs = []*url.URL{u}
	default:
		return nil, fmt.Errorf("unknown certificate kind %q", kind)
	}

	if kind == KindSelfSigned {
		template.IsCA = true
		template.KeyUsage |= x509.KeyUsageCertSign
		return assemble(kind, template, template, leafKey, leafKey, nil)
	}

	caTemplate, caKey, err := authority(now())
	if err != nil {
		return nil, err
	}
	return assemble(kind, template, caTemplate, leafKey, caKey, caTemplate)
}

func assemble(kind Kind, template, parent *x509.Certificate, leafKey, signer *ecdsa.PrivateKey, root *x509.Certificate) (*Identity, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &leafKey.PublicKey, signer)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}

	chain := [][]byte{der}
	if root == nil {
		root = leaf
	} else {
		chain = append(chain, root.Raw)
	}

	return &Identity{
		Kind: kind,
		Certificate: tls.Certificate{
			Certificate: chain,
			PrivateKey:  leafKey,
			Leaf:        leaf,
		},
		Leaf: leaf,
		Root: root,
	}, nil
}

func authority(now time.Time) (*x509.Certificate, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate CA key: %w", err)
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, nil, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "tlsprobe test CA", Organization: []string{"tlsprobe"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create CA certificate: %w", err)
	}
	ca, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("parse CA certificate: %w", err)
	}
	return ca, key, nil
}

func leafTemplate(now time.Time) (*x509.Certificate, error) {
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}
	return &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"tlsprobe"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}, nil
}

func setHosts(template *x509.Certificate, hosts []string) {
	template.Subject.CommonName = hosts[0]
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}
}

func serialNumber() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("generate serial number: %w", err)
	}
	return serial, nil
}
