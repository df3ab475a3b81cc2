package certs

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Kinds(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			id, err := Generate(kind, Options{})
			require.NoError(t, err)
			require.NotNil(t, id.Leaf)
			assert.Equal(t, kind, id.Kind)
			assert.Same(t, id.Leaf, id.Certificate.Leaf)
			assert.NotNil(t, id.Certificate.PrivateKey)
		})
	}
}

func TestGenerate_ValidVerifiesAgainstPool(t *testing.T) {
	id, err := Generate(KindValid, Options{})
	require.NoError(t, err)

	_, err = id.Leaf.Verify(x509.VerifyOptions{Roots: id.Pool(), DNSName: "localhost"})
	assert.NoError(t, err)
	assert.NoError(t, id.Leaf.VerifyHostname("127.0.0.1"))
}

func TestGenerate_Expired(t *testing.T) {
	id, err := Generate(KindExpired, Options{})
	require.NoError(t, err)

	assert.True(t, id.Leaf.NotAfter.Before(time.Now()))
	_, err = id.Leaf.Verify(x509.VerifyOptions{Roots: id.Pool()})
	var invalid x509.CertificateInvalidError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, x509.Expired, invalid.Reason)
}

func TestGenerate_WrongHost(t *testing.T) {
	id, err := Generate(KindWrongHost, Options{})
	require.NoError(t, err)

	assert.Error(t, id.Leaf.VerifyHostname("localhost"))
	assert.NoError(t, id.Leaf.VerifyHostname(WrongHost))
}

func TestGenerate_SelfSignedIsItsOwnRoot(t *testing.T) {
	id, err := Generate(KindSelfSigned, Options{})
	require.NoError(t, err)

	assert.Same(t, id.Leaf, id.Root)
	assert.Len(t, id.Certificate.Certificate, 1)

	_, err = id.Leaf.Verify(x509.VerifyOptions{Roots: x509.NewCertPool()})
	assert.Error(t, err)
}

func TestGenerate_SPIFFE(t *testing.T) {
	id, err := Generate(KindSPIFFE, Options{SPIFFEID: "spiffe://example.org/echo"})
	require.NoError(t, err)

	require.Len(t, id.Leaf.URIs, 1)
	assert.Equal(t, "spiffe://example.org/echo", id.Leaf.URIs[0].String())
}

func TestGenerate_UnknownKind(t *testing.T) {
	_, err := Generate(Kind("bogus"), Options{})
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindSelfSigned, k)

	k, err = ParseKind("Expired")
	require.NoError(t, err)
	assert.Equal(t, KindExpired, k)

	_, err = ParseKind("revoked")
	assert.Error(t, err)
}
