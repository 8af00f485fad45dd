// Package testcert generates a throwaway self-signed RSA certificate
// and key pair for local TLS+ALPN testing, so a test never needs a
// cert file on disk. Grounded on the teacher's own h2spec test setup,
// which generates its certificate the same way rather than shipping a
// static PEM file.
package testcert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"time"
)

// KeyPair holds a generated certificate and private key, both as DER
// bytes and as a ready-to-use tls.Certificate.
type KeyPair struct {
	CertDER []byte
	KeyDER  []byte
	TLS     tls.Certificate
	Host    string
}

// Generate builds a self-signed RSA-2048 certificate valid for the
// given hosts (typically "localhost" and/or "127.0.0.1"), good for one
// hour — long enough for a test run, short enough to never be mistaken
// for anything durable.
func Generate(hosts ...string) (*KeyPair, error) {
	if len(hosts) == 0 {
		hosts = []string{"localhost"}
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{Organization: []string{"h2wire test harness"}},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:         true,
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}
	keyDER := x509.MarshalPKCS1PrivateKey(priv)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: keyDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &KeyPair{CertDER: certDER, KeyDER: keyDER, TLS: tlsCert, Host: hosts[0]}, nil
}

// ServerTLSConfig builds a tls.Config presenting kp, advertising both
// "h2" and "http/1.1" via ALPN so a server can exercise the
// h1fallback path as well as the HTTP/2 harness.
func (kp *KeyPair) ServerTLSConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{kp.TLS},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS12,
	}
}

// ClientTLSConfig builds a tls.Config that trusts kp's certificate,
// for a client dialing a server using it.
func (kp *KeyPair) ClientTLSConfig() (*tls.Config, error) {
	cert, err := x509.ParseCertificate(kp.CertDER)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return &tls.Config{RootCAs: pool, ServerName: kp.Host}, nil
}
