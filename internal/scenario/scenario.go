// Package scenario runs tables of loopback and remote probes and compares
// each outcome with the failure class it was expected to produce.
package scenario

import (
	"time"

	"github.com/sufield/tlsprobe/internal/certs"
	"github.com/sufield/tlsprobe/internal/core/domain"
	coreErrors "github.com/sufield/tlsprobe/internal/core/errors"
)

// Scenario is one loopback exchange. ClientProtocols wins over
// RequestOnlyThisProtocol; when neither is set the client is unrestricted.
type Scenario struct {
	Name                    string             `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	UseTLS                  bool               `mapstructure:"use_tls" json:"use_tls" yaml:"use_tls"`
	ServerProtocols         domain.ProtocolSet `mapstructure:"server_protocols" json:"server_protocols" yaml:"server_protocols" validate:"protocols"`
	ClientProtocols         domain.ProtocolSet `mapstructure:"client_protocols" json:"client_protocols" yaml:"client_protocols" validate:"protocols"`
	RequestOnlyThisProtocol bool               `mapstructure:"request_only_this_protocol" json:"request_only_this_protocol" yaml:"request_only_this_protocol"`
	Certificate             certs.Kind         `mapstructure:"certificate" json:"certificate" yaml:"certificate" validate:"omitempty,oneof=valid self-signed expired wrong-host spiffe"`
	Policy                  string             `mapstructure:"policy" json:"policy" yaml:"policy" validate:"omitempty,oneof=accept-any dangerous-accept-any strict pinned spiffe"`
	Pins                    []string           `mapstructure:"pins" json:"pins,omitempty" yaml:"pins,omitempty"`
	SPIFFEID                string             `mapstructure:"spiffe_id" json:"spiffe_id,omitempty" yaml:"spiffe_id,omitempty" validate:"omitempty,spiffe_id"`
	TrustRoot               bool               `mapstructure:"trust_root" json:"trust_root" yaml:"trust_root"`
	Expect                  coreErrors.Class   `mapstructure:"expect" json:"expect" yaml:"expect"`
	Timeout                 time.Duration      `mapstructure:"timeout" json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"duration"`
}

// EffectiveClientProtocols is the set the client driver is restricted to.
func (s Scenario) EffectiveClientProtocols() domain.ProtocolSet {
	if !s.ClientProtocols.IsNone() {
		return s.ClientProtocols
	}
	if s.RequestOnlyThisProtocol {
		return s.ServerProtocols
	}
	return domain.ProtocolsNone
}

// Remote probes a fixed external endpoint whose identity is known to be
// broken in a particular way. Remotes only run when outer-loop runs are
// enabled.
type Remote struct {
	Name      string             `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	URL       string             `mapstructure:"url" json:"url" yaml:"url" validate:"required,https_url"`
	Protocols domain.ProtocolSet `mapstructure:"protocols" json:"protocols" yaml:"protocols" validate:"protocols"`
	Policy    string             `mapstructure:"policy" json:"policy" yaml:"policy" validate:"omitempty,oneof=accept-any dangerous-accept-any strict pinned spiffe"`
	Pins      []string           `mapstructure:"pins" json:"pins,omitempty" yaml:"pins,omitempty"`
	SPIFFEID  string             `mapstructure:"spiffe_id" json:"spiffe_id,omitempty" yaml:"spiffe_id,omitempty" validate:"omitempty,spiffe_id"`
	Expect    coreErrors.Class   `mapstructure:"expect" json:"expect" yaml:"expect"`
}

// Plan is everything a run executes.
type Plan struct {
	Scenarios []Scenario `mapstructure:"scenarios" json:"scenarios" yaml:"scenarios" validate:"dive"`
	Remotes   []Remote   `mapstructure:"remotes" json:"remotes" yaml:"remotes" validate:"dive"`
}

// Report is the outcome of one scenario or remote.
type Report struct {
	RunID     string                  `json:"run_id" yaml:"run_id"`
	Name      string                  `json:"name" yaml:"name"`
	Remote    bool                    `json:"remote,omitempty" yaml:"remote,omitempty"`
	Expect    coreErrors.Class        `json:"expect" yaml:"expect"`
	Got       coreErrors.Class        `json:"got" yaml:"got"`
	Passed    bool                    `json:"passed" yaml:"passed"`
	Skipped   bool                    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Error     string                  `json:"error,omitempty" yaml:"error,omitempty"`
	Status    int                     `json:"status,omitempty" yaml:"status,omitempty"`
	Handshake *domain.HandshakeResult `json:"handshake,omitempty" yaml:"handshake,omitempty"`
	Duration  time.Duration           `json:"duration" yaml:"duration"`
}

// Summary aggregates the reports of one run.
type Summary struct {
	RunID   string   `json:"run_id" yaml:"run_id"`
	Reports []Report `json:"reports" yaml:"reports"`
	Passed  int      `json:"passed" yaml:"passed"`
	Failed  int      `json:"failed" yaml:"failed"`
	Skipped int      `json:"skipped" yaml:"skipped"`
}

// OK reports whether every executed scenario matched its expectation.
func (s Summary) OK() bool {
	return s.Failed == 0
}
