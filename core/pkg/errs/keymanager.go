package errs

import "errors"

var (
	ErrKeyNotFound         error = errors.New("key not found")
	ErrKeyAddressMismatch  error = errors.New("key address mismatch")
	ErrKeyNotValidUpgrade  error = errors.New("key is not a valid upgrade")
	ErrKeyExpiryExtension  error = errors.New("key expiry extension error")
	ErrKeyParse            error = errors.New("could not parse key material")
	ErrKeyTooLarge         error = errors.New("key material too large")
	ErrKeyAlreadyExists    error = errors.New("key already exists")
	ErrFingerprintMismatch error = errors.New("fetched fingerprint does not match requested fingerprint")

	ErrDecrypt error = errors.New("decryption failed")

	ErrValidateBadRequest error = errors.New("struct validation error")

	ErrCryptoEngineNotFound  error = errors.New("crypto engine not found")
	ErrStorageEngineNotFound error = errors.New("storage engine not found")
)
