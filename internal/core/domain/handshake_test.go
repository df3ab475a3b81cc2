package domain

import (
	"crypto/tls"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type alertText string

func (a alertText) Error() string { return string(a) }

func TestNewHandshakeResult(t *testing.T) {
	result := NewHandshakeResult(tls.ConnectionState{
		Version:     tls.VersionTLS12,
		CipherSuite: tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		ServerName:  "localhost",
	})

	assert.Equal(t, VersionTLS12, result.Version)
	assert.Equal(t, "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256", result.CipherSuite)
	assert.Equal(t, "localhost", result.ServerName)
	assert.Zero(t, result.PeerCerts)
}

func TestIsPeerCertificateRejection(t *testing.T) {
	rejected := &net.OpError{Op: "remote error", Err: alertText("tls: bad certificate")}
	versionAlert := &net.OpError{Op: "remote error", Err: alertText("tls: protocol version not supported")}
	local := &net.OpError{Op: "read", Err: alertText("tls: bad certificate")}

	assert.True(t, IsPeerCertificateRejection(rejected))
	assert.True(t, IsPeerCertificateRejection(errors.Join(errors.New("serve"), rejected)))
	assert.False(t, IsPeerCertificateRejection(versionAlert))
	assert.False(t, IsPeerCertificateRejection(local))
	assert.False(t, IsPeerCertificateRejection(nil))
}
