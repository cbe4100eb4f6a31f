package cryptoengines

import (
	"time"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/sirupsen/logrus"
)

// CryptoEngine wraps the OpenPGP primitives. Keys passed in and returned carry armored
// material in KeyData; engines never touch storage.
type CryptoEngine interface {
	GetProvider() config.CryptoEngineProvider

	GenerateKey(address string, expiry time.Time) (*models.KeyPair, error)
	// ParseKey returns the public record and, when the material holds secret keys, the private one.
	// A non empty address must be one of the key uids, else errs.ErrKeyAddressMismatch.
	ParseKey(material []byte, address string) (*models.KeyPair, error)

	Encrypt(data []byte, recipient *models.Key, signer *models.Key) ([]byte, error)
	// Decrypt reports whether the message carried a valid signature from verifier.
	Decrypt(ciphertext []byte, key *models.Key, verifier *models.Key) ([]byte, bool, error)
	Sign(data []byte, key *models.Key, detach bool) ([]byte, error)
	// Verify checks a detached signature when one is given, an inline signed message otherwise.
	Verify(data []byte, key *models.Key, detachedSignature []byte) (bool, error)

	// SignKey certifies the target public key with the signer private key.
	SignKey(target *models.Key, signer *models.Key) (*models.Key, error)
	SetExpiry(private *models.Key, expiry time.Time) (*models.KeyPair, error)
}

var cryptoEngineBuilders = make(map[config.CryptoEngineProvider]func(*logrus.Entry, config.CryptoEngine) (CryptoEngine, error))

func RegisterCryptoEngine(name config.CryptoEngineProvider, builder func(*logrus.Entry, config.CryptoEngine) (CryptoEngine, error)) {
	cryptoEngineBuilders[name] = builder
}

func GetEngineBuilder(name config.CryptoEngineProvider) func(*logrus.Entry, config.CryptoEngine) (CryptoEngine, error) {
	return cryptoEngineBuilders[name]
}
