package app

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
)

const (
	CA_CERTIFICATE_FILENAME     = "ca.pem"
	CLIENT_CERTIFICATE_FILENAME = "client.pem"
	CLIENT_KEY_FILENAME         = "client.key.pem"
)

func loadPemFile(dir string, name string) (*pem.Block, error) {
	pemFile, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	pemBlock, _ := pem.Decode(pemFile)
	if pemBlock == nil {
		return nil, fmt.Errorf("pem.Decode failed for %s", name)
	}

	return pemBlock, nil
}

func loadPemCertificate(dir string, name string) (*x509.Certificate, error) {
	pemBlock, err := loadPemFile(dir, name)
	if err != nil {
		return nil, err
	}

	return x509.ParseCertificate(pemBlock.Bytes)
}

// BrokerTLSConfig builds the mutual TLS config used to reach the broker from
// the certificates found in dir.
func BrokerTLSConfig(dir string) (*tls.Config, error) {
	ca, err := loadPemCertificate(dir, CA_CERTIFICATE_FILENAME)
	if err != nil {
		return nil, fmt.Errorf("loading broker ca: %w", err)
	}

	certpool := x509.NewCertPool()
	certpool.AddCert(ca)

	cert, err := tls.LoadX509KeyPair(
		filepath.Join(dir, CLIENT_CERTIFICATE_FILENAME),
		filepath.Join(dir, CLIENT_KEY_FILENAME))
	if err != nil {
		return nil, fmt.Errorf("loading client certificate: %w", err)
	}

	return &tls.Config{
		RootCAs:      certpool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func (app *App) BrokerTLSConfig() (*tls.Config, error) {
	return BrokerTLSConfig(app.CertificatePath)
}
