// Package certs keeps a self-signed certificate for serving the API over
// HTTPS on a development machine.
package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	validity = 90 * 24 * time.Hour
	// renewBefore regenerates a certificate this close to expiry.
	renewBefore = 7 * 24 * time.Hour
)

// Manager loads or creates the certificate pair in a directory.
type Manager struct {
	now      func() time.Time
	logger   *slog.Logger
	certFile string
	keyFile  string
	dir      string
	hosts    []string
}

// NewManager creates a manager for dir. hosts defaults to localhost and the
// loopback addresses.
func NewManager(dir string, hosts ...string) *Manager {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1", "::1"}
	}
	return &Manager{
		dir:      dir,
		hosts:    hosts,
		certFile: filepath.Join(dir, "phi.crt"),
		keyFile:  filepath.Join(dir, "phi.key"),
		now:      time.Now,
		logger:   slog.Default().With("component", "certs"),
	}
}

// CertFile is the PEM certificate path, for importing into a trust store.
func (m *Manager) CertFile() string {
	return m.certFile
}

// Certificate returns the stored pair, generating a new one when it is
// missing, unreadable, expiring or issued for other hosts.
func (m *Manager) Certificate() (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(m.certFile, m.keyFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		m.logger.Warn("Stored certificate unreadable, regenerating", "error", err)
	default:
		reason := m.stale(cert)
		if reason == "" {
			return cert, nil
		}
		m.logger.Info("Regenerating certificate", "reason", reason)
	}
	return m.generate()
}

// TLSConfig wraps Certificate for an http.Server.
func (m *Manager) TLSConfig() (*tls.Config, error) {
	cert, err := m.Certificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (m *Manager) stale(cert tls.Certificate) string {
	if len(cert.Certificate) == 0 {
		return "empty chain"
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return "unparsable"
	}
	now := m.now()
	if now.Before(leaf.NotBefore) {
		return "not yet valid"
	}
	if now.Add(renewBefore).After(leaf.NotAfter) {
		return "expiring"
	}
	for _, h := range m.hosts {
		if err := leaf.VerifyHostname(h); err != nil {
			return "missing host " + h
		}
	}
	return ""
}

func (m *Manager) generate() (tls.Certificate, error) {
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial: %w", err)
	}

	now := m.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"Phi development"}, CommonName: m.hosts[0]},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range m.hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode key: %w", err)
	}

	if err := writePEM(m.certFile, "CERTIFICATE", der); err != nil {
		return tls.Certificate{}, err
	}
	if err := writePEM(m.keyFile, "EC PRIVATE KEY", keyDER); err != nil {
		return tls.Certificate{}, err
	}

	m.logger.Info("Generated development certificate", "path", m.certFile, "hosts", m.hosts, "expires", template.NotAfter)
	return tls.LoadX509KeyPair(m.certFile, m.keyFile)
}

func writePEM(path, blockType string, der []byte) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
