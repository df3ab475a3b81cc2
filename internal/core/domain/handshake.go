package domain

import (
	"crypto/tls"
	"errors"
	"net"
	"strings"
)

// HandshakeResult describes one negotiated TLS session. It lives only as
// long as the connection attempt that produced it.
type HandshakeResult struct {
	Version     Version `json:"version" yaml:"version"`
	CipherSuite string  `json:"cipher_suite" yaml:"cipher_suite"`
	ServerName  string  `json:"server_name,omitempty" yaml:"server_name,omitempty"`
	PeerCerts   int     `json:"peer_certificates" yaml:"peer_certificates"`
}

// NewHandshakeResult summarises a connection state.
func NewHandshakeResult(state tls.ConnectionState) HandshakeResult {
	return HandshakeResult{
		Version:     VersionFromUint16(state.Version),
		CipherSuite: tls.CipherSuiteName(state.CipherSuite),
		ServerName:  state.ServerName,
		PeerCerts:   len(state.PeerCertificates),
	}
}

// IsPeerCertificateRejection reports whether err is the alert a peer sends
// after refusing our certificate. crypto/tls surfaces received alerts as a
// "remote error" net.OpError wrapping an unexported alert value.
func IsPeerCertificateRejection(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) || opErr.Op != "remote error" || opErr.Err == nil {
		return false
	}
	msg := opErr.Err.Error()
	return strings.Contains(msg, "bad certificate") ||
		strings.Contains(msg, "unknown certificate authority") ||
		strings.Contains(msg, "certificate expired")
}
