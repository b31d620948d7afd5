// Package certs issues and loads the self-signed certificate the document
// server uses for HTTPS, and the pool clients use to trust it.
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
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Validity is how long an issued certificate stays valid.
const Validity = 365 * 24 * time.Hour

// Issuer keeps a certificate and key for a fixed set of hosts in a directory.
type Issuer struct {
	now      func() time.Time
	dir      string
	certFile string
	keyFile  string
	hosts    []string
}

// NewIssuer creates an issuer storing server.crt and server.key in dir.
// No hosts means localhost.
func NewIssuer(dir string, hosts []string) *Issuer {
	if len(hosts) == 0 {
		hosts = []string{"localhost"}
	}
	return &Issuer{
		now:      time.Now,
		dir:      dir,
		certFile: filepath.Join(dir, "server.crt"),
		keyFile:  filepath.Join(dir, "server.key"),
		hosts:    hosts,
	}
}

// CertFile is the PEM certificate clients can trust via remote.ca_file.
func (i *Issuer) CertFile() string {
	return i.certFile
}

// Certificate returns the stored certificate, issuing a new one when none
// exists or the stored one is unreadable, expired or missing a host.
func (i *Issuer) Certificate() (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(i.certFile, i.keyFile)
	if err == nil && i.usable(cert) == nil {
		return cert, nil
	}
	return i.issue()
}

// TLSConfig returns a server TLS configuration using Certificate.
func (i *Issuer) TLSConfig() (*tls.Config, error) {
	cert, err := i.Certificate()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (i *Issuer) usable(cert tls.Certificate) error {
	if len(cert.Certificate) == 0 {
		return errors.New("no certificate in pair")
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse certificate: %w", err)
	}
	now := i.now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate valid from %s to %s", leaf.NotBefore, leaf.NotAfter)
	}
	for _, host := range i.hosts {
		if err := leaf.VerifyHostname(host); err != nil {
			return err
		}
	}
	return nil
}

func (i *Issuer) issue() (tls.Certificate, error) {
	if err := os.MkdirAll(i.dir, 0o700); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate directory: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := i.now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"SpendWise"}, CommonName: i.hosts[0]},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	for _, host := range i.hosts {
		if ip := net.ParseIP(host); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, host)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to create certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to encode key: %w", err)
	}

	if err := writePEM(i.certFile, "CERTIFICATE", der); err != nil {
		return tls.Certificate{}, err
	}
	if err := writePEM(i.keyFile, "PRIVATE KEY", keyDER); err != nil {
		return tls.Certificate{}, err
	}
	return tls.LoadX509KeyPair(i.certFile, i.keyFile)
}

func writePEM(path, blockType string, der []byte) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadPool reads PEM certificates from path into a pool for clients.
func LoadPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates in %s", path)
	}
	return pool, nil
}
