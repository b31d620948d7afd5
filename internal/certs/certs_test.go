package certs

import (
	"crypto/tls"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
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

func TestIssuer_Certificate(t *testing.T) {
	tests := []struct {
		setup func(t *testing.T, i *Issuer)
		name  string
		reuse bool
	}{
		{
			name:  "issues when none exists",
			setup: func(*testing.T, *Issuer) {},
		},
		{
			name: "reuses a valid certificate",
			setup: func(t *testing.T, i *Issuer) {
				t.Helper()
				_, err := i.Certificate()
				require.NoError(t, err)
			},
			reuse: true,
		},
		{
			name: "replaces unreadable files",
			setup: func(t *testing.T, i *Issuer) {
				t.Helper()
				require.NoError(t, os.MkdirAll(i.dir, 0o700))
				require.NoError(t, os.WriteFile(i.certFile, []byte("garbage"), 0o600))
				require.NoError(t, os.WriteFile(i.keyFile, []byte("garbage"), 0o600))
			},
		},
		{
			name: "replaces an expired certificate",
			setup: func(t *testing.T, i *Issuer) {
				t.Helper()
				i.now = func() time.Time { return time.Now().Add(-2 * Validity) }
				_, err := i.Certificate()
				require.NoError(t, err)
				i.now = time.Now
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := NewIssuer(filepath.Join(t.TempDir(), "certs"), []string{"localhost", "127.0.0.1"})
			tt.setup(t, i)

			before, _ := os.ReadFile(i.certFile)
			cert, err := i.Certificate()
			require.NoError(t, err)

			parsed := leaf(t, cert)
			assert.NoError(t, parsed.VerifyHostname("localhost"))
			assert.NoError(t, parsed.VerifyHostname("127.0.0.1"))
			assert.True(t, parsed.NotAfter.After(time.Now()))

			after, err := os.ReadFile(i.certFile)
			require.NoError(t, err)
			if tt.reuse {
				assert.Equal(t, before, after)
			} else {
				assert.NotEqual(t, before, after)
			}
		})
	}
}

func TestIssuer_NewHostReissues(t *testing.T) {
	dir := t.TempDir()
	_, err := NewIssuer(dir, nil).Certificate()
	require.NoError(t, err)

	cert, err := NewIssuer(dir, []string{"localhost", "ledger.home"}).Certificate()
	require.NoError(t, err)
	assert.Contains(t, leaf(t, cert).DNSNames, "ledger.home")
}

func TestLoadPool_TrustsIssuedCertificate(t *testing.T) {
	i := NewIssuer(t.TempDir(), []string{"127.0.0.1"})
	cfg, err := i.TLSConfig()
	require.NoError(t, err)

	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	srv.TLS = cfg
	srv.StartTLS()
	defer srv.Close()

	pool, err := LoadPool(i.CertFile())
	require.NoError(t, err)
	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = LoadPool(filepath.Join(t.TempDir(), "missing.crt"))
	assert.Error(t, err)
}
