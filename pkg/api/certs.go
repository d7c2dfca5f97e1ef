package api

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"time"

	"github.com/cuemby/homeledger/pkg/errs"
)

// leafCertValidity bounds the lifetime of the self-signed leaf generated
// at startup; the server is restarted to rotate it.
const leafCertValidity = 365 * 24 * time.Hour

// selfSignedCertificate reads an RSA private key from keyPath and wraps
// it in a freshly minted, self-signed leaf certificate. The server holds
// no CA and issues nothing else: this key only ever backs this one
// process's TLS listener.
func selfSignedCertificate(keyPath string) (tls.Certificate, error) {
	key, err := loadRSAPrivateKey(keyPath)
	if err != nil {
		return tls.Certificate{}, err
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, errs.Wrap(errs.IO, "generate certificate serial number", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{CommonName: "homeledger", Organization: []string{"homeledger"}},
		NotBefore:    now,
		NotAfter:     now.Add(leafCertValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, errs.Wrap(errs.IO, "create self-signed certificate", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, errs.Wrap(errs.IO, "assemble TLS certificate", err)
	}
	return cert, nil
}

func loadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read RSA key file", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errs.New(errs.InvalidData, "no PEM block found in RSA key file")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "parse RSA private key", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errs.New(errs.InvalidData, "key file does not contain an RSA private key")
	}
	return key, nil
}
