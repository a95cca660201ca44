package certs

import (
	"crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaf(t *testing.T, cert tls.Certificate) *x509.Certificate {
	t.Helper()
	require.Len(t, cert.Certificate, 1)
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	return parsed
}

func TestCertificateCreatedForLocalhost(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tls")
	m := NewManager(dir)

	cert, err := m.Certificate()
	require.NoError(t, err)

	c := leaf(t, cert)
	assert.Equal(t, []string{"Phi development"}, c.Subject.Organization)
	assert.NoError(t, c.VerifyHostname("localhost"))
	assert.NoError(t, c.VerifyHostname("127.0.0.1"))
	assert.WithinDuration(t, time.Now().Add(validity), c.NotAfter, time.Minute)

	info, err := os.Stat(m.CertFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestCertificateReused(t *testing.T) {
	m := NewManager(t.TempDir())

	first, err := m.Certificate()
	require.NoError(t, err)
	second, err := m.Certificate()
	require.NoError(t, err)

	assert.Equal(t, leaf(t, first).SerialNumber, leaf(t, second).SerialNumber)
}

func TestCertificateRegenerated(t *testing.T) {
	tests := []struct {
		prepare func(t *testing.T, m *Manager)
		name    string
	}{
		{
			name: "garbage on disk",
			prepare: func(t *testing.T, m *Manager) {
				t.Helper()
				require.NoError(t, os.WriteFile(m.certFile, []byte("not a cert"), 0o600))
				require.NoError(t, os.WriteFile(m.keyFile, []byte("not a key"), 0o600))
			},
		},
		{
			name: "close to expiry",
			prepare: func(t *testing.T, m *Manager) {
				t.Helper()
				m.now = func() time.Time { return time.Now().Add(-validity + 24*time.Hour) }
				_, err := m.Certificate()
				require.NoError(t, err)
				m.now = time.Now
			},
		},
		{
			name: "issued for other hosts",
			prepare: func(t *testing.T, m *Manager) {
				t.Helper()
				other := NewManager(m.dir, "dev.internal")
				_, err := other.Certificate()
				require.NoError(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(t.TempDir())
			tt.prepare(t, m)

			cert, err := m.Certificate()
			require.NoError(t, err)
			c := leaf(t, cert)
			assert.NoError(t, c.VerifyHostname("localhost"))
			assert.True(t, c.NotAfter.After(time.Now().Add(renewBefore)))
		})
	}
}

func TestTLSConfig(t *testing.T) {
	cfg, err := NewManager(t.TempDir(), "phi.localhost").TLSConfig()
	require.NoError(t, err)
	require.Len(t, cfg.Certificates, 1)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	assert.Equal(t, []string{"phi.localhost"}, leaf(t, cfg.Certificates[0]).DNSNames)
}
