package services

import (
	"context"

	"github.com/leapcode/keymanager/core/pkg/models"
)

// KeyManager is the public surface of the key manager.
type KeyManager interface {
	GetKey(ctx context.Context, input GetKeyInput) (*models.Key, error)
	GetAllKeys(ctx context.Context, input GetAllKeysInput) ([]*models.Key, error)
	GetInactivePrivateKeys(ctx context.Context) ([]*models.Key, error)

	PutRawKey(ctx context.Context, input PutRawKeyInput) (*models.Key, error)
	FetchKey(ctx context.Context, input FetchKeyInput) (*models.Key, error)
	FetchKeyFingerprint(ctx context.Context, input FetchKeyFingerprintInput) (*models.Key, error)
	SendKey(ctx context.Context) error

	Encrypt(ctx context.Context, input EncryptInput) ([]byte, error)
	Decrypt(ctx context.Context, input DecryptInput) (*models.DecryptResult, error)
	Sign(ctx context.Context, input SignInput) ([]byte, error)
	Verify(ctx context.Context, input VerifyInput) (models.VerificationResult, error)

	GenerateKey(ctx context.Context) (*models.Key, error)
	RegenerateKey(ctx context.Context) (*models.Key, error)
	ExtendKey(ctx context.Context, input ExtendKeyInput) (*models.Key, error)
}

type GetKeyInput struct {
	Address string `validate:"required,email"`
	Private bool
	// LocalOnly disables the directory lookup for public keys missing locally.
	LocalOnly bool
}

type GetAllKeysInput struct {
	Private bool
}

type PutRawKeyInput struct {
	Material   []byte `validate:"required"`
	Address    string `validate:"required,email"`
	Validation models.ValidationLevel
}

type FetchKeyInput struct {
	Address string `validate:"required,email"`
	URL     string `validate:"required,url"`
}

type FetchKeyFingerprintInput struct {
	Address     string `validate:"required,email"`
	Fingerprint string `validate:"required,hexadecimal"`
}

type EncryptInput struct {
	Data      []byte
	Address   string `validate:"required,email"`
	SignWith  string `validate:"omitempty,email"`
	LocalOnly bool
}

type DecryptInput struct {
	Ciphertext []byte `validate:"required"`
	Address    string `validate:"required,email"`
	VerifyWith string `validate:"omitempty,email"`
	LocalOnly  bool
}

type SignInput struct {
	Data    []byte
	Address string `validate:"required,email"`
	Detach  bool
}

type VerifyInput struct {
	// Data is the signed message, or the signed content when DetachedSignature is set.
	Data              []byte `validate:"required"`
	Address           string `validate:"required,email"`
	DetachedSignature []byte
	LocalOnly         bool
}

type ExtendKeyInput struct {
	Validity string `validate:"required"`
}
