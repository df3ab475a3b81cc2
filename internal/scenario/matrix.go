package scenario

import (
	"fmt"

	"github.com/sufield/tlsprobe/internal/certs"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
	"github.com/sufield/tlsprobe/pkg/certpolicy"
)

// MatrixProtocols are the server protocol sets the default matrix covers.
var MatrixProtocols = []domain.ProtocolSet{
	domain.Protocols(domain.VersionTLS10),
	domain.Protocols(domain.VersionTLS11),
	domain.Protocols(domain.VersionTLS12),
	domain.Protocols(domain.VersionTLS10, domain.VersionTLS11, domain.VersionTLS12),
	domain.ProtocolsNone,
}

// DefaultMatrix is the built-in plan: accept-any across every protocol set
// with and without restricting the client, every certificate kind, disjoint
// protocol sets and the verifying policies.
func DefaultMatrix() Plan {
	var plan Plan

	for _, protocols := range MatrixProtocols {
		for _, only := range []bool{false, true} {
			plan.Scenarios = append(plan.Scenarios, Scenario{
				Name:                    fmt.Sprintf("accept-any/%s/only-this-protocol=%t", protocols, only),
				UseTLS:                  true,
				ServerProtocols:         protocols,
				RequestOnlyThisProtocol: only,
				Certificate:             certs.KindSelfSigned,
				Policy:                  certpolicy.NameAcceptAny,
				Expect:                  coreErrors.ClassNone,
			})
		}
	}

	for _, kind := range certs.Kinds() {
		plan.Scenarios = append(plan.Scenarios, Scenario{
			Name:        fmt.Sprintf("accept-any/certificate=%s", kind),
			UseTLS:      true,
			Certificate: kind,
			Policy:      certpolicy.NameAcceptAny,
			Expect:      coreErrors.ClassNone,
		})
	}

	disjoint := []struct{ server, client domain.ProtocolSet }{
		{domain.Protocols(domain.VersionTLS12), domain.Protocols(domain.VersionTLS10)},
		{domain.Protocols(domain.VersionTLS10), domain.Protocols(domain.VersionTLS12)},
		{domain.Protocols(domain.VersionTLS11), domain.Protocols(domain.VersionTLS12, domain.VersionTLS13)},
	}
	for _, d := range disjoint {
		plan.Scenarios = append(plan.Scenarios, Scenario{
			Name:            fmt.Sprintf("disjoint/server=%s/client=%s", d.server, d.client),
			UseTLS:          true,
			ServerProtocols: d.server,
			ClientProtocols: d.client,
			Certificate:     certs.KindSelfSigned,
			Policy:          certpolicy.NameAcceptAny,
			Expect:          coreErrors.ClassHandshake,
		})
	}

	plan.Scenarios = append(plan.Scenarios,
		Scenario{
			Name:        "strict/self-signed",
			UseTLS:      true,
			Certificate: certs.KindSelfSigned,
			Policy:      certpolicy.NameStrict,
			Expect:      coreErrors.ClassValidation,
		},
		Scenario{
			Name:        "strict/expired",
			UseTLS:      true,
			Certificate: certs.KindExpired,
			Policy:      certpolicy.NameStrict,
			TrustRoot:   true,
			Expect:      coreErrors.ClassValidation,
		},
		Scenario{
			Name:        "strict/trusted",
			UseTLS:      true,
			Certificate: certs.KindValid,
			Policy:      certpolicy.NameStrict,
			TrustRoot:   true,
			Expect:      coreErrors.ClassNone,
		},
		Scenario{
			Name:        "pinned/self-signed",
			UseTLS:      true,
			Certificate: certs.KindSelfSigned,
			Policy:      certpolicy.NamePinned,
			Expect:      coreErrors.ClassNone,
		},
		Scenario{
			Name:        "spiffe/matching-id",
			UseTLS:      true,
			Certificate: certs.KindSPIFFE,
			Policy:      certpolicy.NameSPIFFE,
			Expect:      coreErrors.ClassNone,
		},
		Scenario{
			Name:   "plain-http",
			Policy: certpolicy.NameStrict,
			Expect: coreErrors.ClassNone,
		},
	)

	plan.Remotes = DefaultRemotes()
	return plan
}

// DefaultRemotes are public endpoints serving deliberately broken
// certificates.
func DefaultRemotes() []Remote {
	return []Remote{
		{Name: "remote/expired", URL: "https://expired.badssl.com/", Policy: certpolicy.NameAcceptAny, Expect: coreErrors.ClassNone},
		{Name: "remote/self-signed", URL: "https://self-signed.badssl.com/", Policy: certpolicy.NameAcceptAny, Expect: coreErrors.ClassNone},
		{Name: "remote/wrong-host", URL: "https://wrong.host.badssl.com/", Policy: certpolicy.NameAcceptAny, Expect: coreErrors.ClassNone},
		{Name: "remote/strict-self-signed", URL: "https://self-signed.badssl.com/", Policy: certpolicy.NameStrict, Expect: coreErrors.ClassValidation},
	}
}
