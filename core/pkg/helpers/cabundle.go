package helpers

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-rootcerts"
)

// CombinedCABundle concatenates the default bundle and the provider pinned bundle, in that
// order, so a chain validating against either is accepted. A missing path yields the other
// bundle alone.
func CombinedCABundle(defaultBundlePath, providerBundlePath string) ([]byte, error) {
	var paths []string
	if defaultBundlePath != "" {
		paths = append(paths, defaultBundlePath)
	}

	if providerBundlePath != "" && !sameFile(defaultBundlePath, providerBundlePath) {
		paths = append(paths, providerBundlePath)
	}

	var buf bytes.Buffer
	for _, p := range paths {
		pemBytes, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("could not read CA bundle %s: %w", p, err)
		}

		buf.Write(pemBytes)
		if len(pemBytes) > 0 && pemBytes[len(pemBytes)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}

	return buf.Bytes(), nil
}

// LoadCAPool builds the cert pool for the given bundle. A nil pool with nil error means
// the system roots must be used.
func LoadCAPool(bundle []byte) (*x509.CertPool, error) {
	if len(bundle) == 0 {
		return rootcerts.LoadCACerts(&rootcerts.Config{})
	}

	return rootcerts.LoadCACerts(&rootcerts.Config{CACertificate: bundle})
}

func sameFile(a, b string) bool {
	if a == "" || b == "" {
		return false
	}

	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}

	return absA == absB
}
