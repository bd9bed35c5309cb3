// Package certs provisions TLS certificates for the HTTP transport.
//
// Provisioning follows a three-step chain: reuse a certificate already
// bound to the requested host/port, else load the configured certificate
// files, else synthesize a short-lived self-signed certificate. The
// port-certificate association lives behind the Binder interface so the
// mechanism can vary per platform without touching transport code.
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
	"sync"
	"time"

	"github.com/anortham/coa-mcp-framework-sub002/pkg/errors"
	"github.com/anortham/coa-mcp-framework-sub002/pkg/logging"
)

// DefaultValidity is the lifetime of synthesized self-signed certificates.
const DefaultValidity = 365 * 24 * time.Hour

// Config controls certificate provisioning for HTTPS listeners.
type Config struct {
	// CertFile and KeyFile point at a PEM certificate/key pair. When set,
	// the pair is loaded and bound instead of synthesizing one.
	CertFile string `json:"certFile,omitempty"`
	KeyFile  string `json:"keyFile,omitempty"`

	// Validity bounds synthesized certificates. Zero means DefaultValidity.
	Validity time.Duration `json:"validity,omitempty"`
}

// Binder associates certificates with host/port endpoints. Implementations
// may keep the association in memory, in an OS certificate store, or
// delegate to an external tool; the provisioner only needs Lookup and Bind.
type Binder interface {
	// Lookup returns the certificate currently bound to host:port, if any.
	Lookup(host string, port int) (*tls.Certificate, bool)

	// Bind associates cert with host:port, replacing any previous binding.
	Bind(host string, port int, cert *tls.Certificate) error
}

// memoryBinder is the default process-local Binder.
type memoryBinder struct {
	mu    sync.RWMutex
	bound map[string]*tls.Certificate
}

// NewMemoryBinder returns a Binder that keeps bindings in process memory.
func NewMemoryBinder() Binder {
	return &memoryBinder{bound: make(map[string]*tls.Certificate)}
}

func bindingKey(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}

func (b *memoryBinder) Lookup(host string, port int) (*tls.Certificate, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cert, ok := b.bound[bindingKey(host, port)]
	return cert, ok
}

func (b *memoryBinder) Bind(host string, port int, cert *tls.Certificate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound[bindingKey(host, port)] = cert
	return nil
}

// Provisioner resolves a TLS configuration for an HTTPS listener.
type Provisioner struct {
	config Config
	binder Binder
	logger logging.Logger
}

// NewProvisioner creates a Provisioner. A nil binder falls back to the
// in-memory binder; a nil logger discards output.
func NewProvisioner(config Config, binder Binder, logger logging.Logger) *Provisioner {
	if binder == nil {
		binder = NewMemoryBinder()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Provisioner{config: config, binder: binder, logger: logger}
}

// Provision returns a TLS configuration for host:port. An existing binding
// is reused; otherwise the configured file pair is loaded, or a self-signed
// certificate is synthesized as a development fallback. Binding failures
// are fatal and are not retried.
func (p *Provisioner) Provision(host string, port int) (*tls.Config, error) {
	if cert, ok := p.binder.Lookup(host, port); ok {
		p.logger.Debug("reusing bound certificate",
			logging.String("host", host),
			logging.Int("port", port))
		return tlsConfigFor(cert), nil
	}

	var (
		cert *tls.Certificate
		err  error
	)
	switch {
	case p.config.CertFile != "" && p.config.KeyFile != "":
		cert, err = p.loadFilePair()
	default:
		cert, err = p.selfSigned(host)
	}
	if err != nil {
		return nil, err
	}

	if err := p.binder.Bind(host, port, cert); err != nil {
		return nil, errors.CertificateError("bind", err).
			WithDetail(fmt.Sprintf("binding certificate to %s failed", bindingKey(host, port)))
	}
	return tlsConfigFor(cert), nil
}

func (p *Provisioner) loadFilePair() (*tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(p.config.CertFile, p.config.KeyFile)
	if err != nil {
		return nil, errors.CertificateError("load", err).
			WithDetail(fmt.Sprintf("loading certificate pair %s / %s failed", p.config.CertFile, p.config.KeyFile))
	}
	p.logger.Info("loaded certificate from file",
		logging.String("certFile", p.config.CertFile))
	return &cert, nil
}

// selfSigned synthesizes an ECDSA P-256 certificate for host. Localhost
// hosts also get loopback addresses as subject alternative names.
func (p *Provisioner) selfSigned(host string) (*tls.Certificate, error) {
	p.logger.Warn("no certificate configured, generating self-signed certificate; development use only",
		logging.String("host", host))

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.CertificateError("generate", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, errors.CertificateError("generate", err)
	}

	validity := p.config.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}
	now := time.Now()

	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: host},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	if ip := net.ParseIP(host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{host}
	}
	if host == "localhost" {
		template.IPAddresses = append(template.IPAddresses,
			net.IPv4(127, 0, 0, 1), net.IPv6loopback)
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, errors.CertificateError("generate", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errors.CertificateError("generate", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

func tlsConfigFor(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}
}
