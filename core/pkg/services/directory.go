package services

import (
	"context"

	"github.com/leapcode/keymanager/core/pkg/models"
)

// DirectoryClient talks to the nicknym key directory of the provider.
type DirectoryClient interface {
	FetchByAddress(ctx context.Context, address string) (*models.DirectoryKeyResponse, error)
	FetchByFingerprint(ctx context.Context, fingerprint string) (*models.DirectoryKeyResponse, error)
	// PutKey publishes the armored public key for the authenticated session identity.
	PutKey(ctx context.Context, armoredPublicKey string) error
}

// RawKeyFetcher downloads key material from an arbitrary URL. The returned level
// reflects the TLS channel the material came through.
type RawKeyFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, models.ValidationLevel, error)
}
