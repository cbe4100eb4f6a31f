package models

// VerificationResult is either VerifiedKey or InvalidSignature.
type VerificationResult interface {
	Valid() bool
}

type VerifiedKey struct {
	Key *Key
}

func (VerifiedKey) Valid() bool {
	return true
}

type InvalidSignature struct {
	Address string
	Reason  string
}

func (InvalidSignature) Valid() bool {
	return false
}

func (s InvalidSignature) String() string {
	if s.Reason == "" {
		return "invalid signature for " + s.Address
	}
	return "invalid signature for " + s.Address + ": " + s.Reason
}

type DecryptResult struct {
	Plaintext []byte
	// Verification is nil when no verification was requested.
	Verification VerificationResult
}
