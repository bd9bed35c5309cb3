package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
)

func TestProvisionSelfSigned(t *testing.T) {
	p := NewProvisioner(Config{}, nil, logging.NopLogger{})

	cfg, err := p.Provision("localhost", 8443)
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)

	leaf := cfg.Certificates[0].Leaf
	require.NotNil(t, leaf)
	assert.Equal(t, "localhost", leaf.Subject.CommonName)
	assert.Contains(t, leaf.DNSNames, "localhost")
	assert.NotEmpty(t, leaf.IPAddresses, "localhost certificates carry loopback SANs")
	assert.True(t, leaf.NotAfter.After(time.Now()))
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestProvisionIPHost(t *testing.T) {
	p := NewProvisioner(Config{}, nil, logging.NopLogger{})

	cfg, err := p.Provision("127.0.0.1", 8443)
	require.NoError(t, err)

	leaf := cfg.Certificates[0].Leaf
	require.NotNil(t, leaf)
	require.NotEmpty(t, leaf.IPAddresses)
	assert.Equal(t, "127.0.0.1", leaf.IPAddresses[0].String())
}

func TestProvisionReusesBoundCertificate(t *testing.T) {
	binder := NewMemoryBinder()
	p := NewProvisioner(Config{}, binder, logging.NopLogger{})

	first, err := p.Provision("localhost", 9443)
	require.NoError(t, err)

	second, err := p.Provision("localhost", 9443)
	require.NoError(t, err)

	assert.Equal(t, first.Certificates[0].Certificate, second.Certificates[0].Certificate,
		"an existing binding must be reused, not replaced")

	// A different port gets a fresh certificate.
	other, err := p.Provision("localhost", 9444)
	require.NoError(t, err)
	assert.NotEqual(t, first.Certificates[0].Certificate, other.Certificates[0].Certificate)
}

type failingBinder struct{}

func (failingBinder) Lookup(string, int) (*tls.Certificate, bool) { return nil, false }
func (failingBinder) Bind(string, int, *tls.Certificate) error {
	return fmt.Errorf("store unavailable")
}

func TestProvisionBindFailureIsFatal(t *testing.T) {
	p := NewProvisioner(Config{}, failingBinder{}, logging.NopLogger{})

	cfg, err := p.Provision("localhost", 8443)
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind")
}

func TestProvisionMissingFilePair(t *testing.T) {
	p := NewProvisioner(Config{
		CertFile: "/nonexistent/server.crt",
		KeyFile:  "/nonexistent/server.key",
	}, nil, logging.NopLogger{})

	cfg, err := p.Provision("localhost", 8443)
	assert.Nil(t, cfg)
	assert.Error(t, err)
}

func TestSelfSignedValidityWindow(t *testing.T) {
	p := NewProvisioner(Config{Validity: time.Hour}, nil, logging.NopLogger{})

	cfg, err := p.Provision("localhost", 8443)
	require.NoError(t, err)
	leaf := cfg.Certificates[0].Leaf
	require.NotNil(t, leaf)

	assert.True(t, leaf.NotBefore.Before(time.Now()))
	assert.WithinDuration(t, time.Now().Add(time.Hour), leaf.NotAfter, time.Minute)
	assert.Equal(t, x509.ExtKeyUsageServerAuth, leaf.ExtKeyUsage[0])
}
