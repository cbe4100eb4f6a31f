package helpers

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestCA(t *testing.T, dir, cn string) (string, []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	path := filepath.Join(dir, cn+".pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0600))
	return path, pemBytes
}

func TestCombinedCABundle(t *testing.T) {
	dir := t.TempDir()
	defaultPath, defaultPEM := writeTestCA(t, dir, "default-root")
	providerPath, providerPEM := writeTestCA(t, dir, "provider-root")

	testcases := []struct {
		name     string
		def      string
		provider string
		expected []byte
	}{
		{name: "default then provider", def: defaultPath, provider: providerPath, expected: append(append([]byte{}, defaultPEM...), providerPEM...)},
		{name: "provider only", provider: providerPath, expected: providerPEM},
		{name: "default only", def: defaultPath, expected: defaultPEM},
		{name: "same file used once", def: defaultPath, provider: defaultPath, expected: defaultPEM},
		{name: "none", expected: nil},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			bundle, err := CombinedCABundle(tc.def, tc.provider)
			require.NoError(t, err)
			assert.Equal(t, string(tc.expected), string(bundle))
		})
	}
}

func TestCombinedCABundleMissingFile(t *testing.T) {
	_, err := CombinedCABundle(filepath.Join(t.TempDir(), "nope.pem"), "")
	assert.Error(t, err)
}

func TestLoadCAPool(t *testing.T) {
	dir := t.TempDir()
	defaultPath, _ := writeTestCA(t, dir, "default-root")
	providerPath, _ := writeTestCA(t, dir, "provider-root")

	bundle, err := CombinedCABundle(defaultPath, providerPath)
	require.NoError(t, err)

	pool, err := LoadCAPool(bundle)
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.Len(t, pool.Subjects(), 2) //nolint:staticcheck

	_, err = LoadCAPool([]byte("not a certificate"))
	assert.Error(t, err)
}
