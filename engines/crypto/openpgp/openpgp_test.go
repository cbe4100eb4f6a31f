package openpgp

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *OpenPGPEngine {
	t.Helper()

	engine, err := NewOpenPGPEngine(logrus.NewEntry(logrus.StandardLogger()), config.CryptoEngine{
		Provider:  config.OpenPGPProvider,
		Algorithm: "curve25519",
	})
	require.NoError(t, err)
	return engine
}

func generate(t *testing.T, engine *OpenPGPEngine, address string) *models.KeyPair {
	t.Helper()

	pair, err := engine.GenerateKey(address, time.Now().AddDate(1, 0, 0))
	require.NoError(t, err)
	require.NotNil(t, pair.Private)
	return pair
}

func TestNewOpenPGPEngine(t *testing.T) {
	var testcases = []struct {
		name string
		conf config.CryptoEngine
		ok   bool
	}{
		{name: "OK/Default", conf: config.CryptoEngine{}, ok: true},
		{name: "OK/RSA", conf: config.CryptoEngine{Algorithm: "rsa", KeySize: 4096}, ok: true},
		{name: "OK/Curve25519", conf: config.CryptoEngine{Algorithm: "curve25519"}, ok: true},
		{name: "Err/ShortRSA", conf: config.CryptoEngine{Algorithm: "rsa", KeySize: 1024}},
		{name: "Err/UnknownAlgorithm", conf: config.CryptoEngine{Algorithm: "dsa"}},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewOpenPGPEngine(logrus.NewEntry(logrus.StandardLogger()), tc.conf)
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, config.OpenPGPProvider, engine.GetProvider())
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestGenerateKey(t *testing.T) {
	engine := setup(t)
	expiry := time.Now().AddDate(1, 0, 0)

	pair, err := engine.GenerateKey("Alice@Example.org", expiry)
	require.NoError(t, err)

	pub, priv := pair.Public, pair.Private
	assert.Equal(t, "alice@example.org", pub.Address)
	assert.Equal(t, []string{"alice@example.org"}, pub.UIDs)
	assert.Len(t, pub.Fingerprint, 40)
	assert.Equal(t, strings.ToUpper(pub.Fingerprint), pub.Fingerprint)
	assert.Equal(t, pub.Fingerprint, priv.Fingerprint)
	assert.False(t, pub.Private)
	assert.True(t, priv.Private)
	assert.Contains(t, pub.KeyData, "BEGIN PGP PUBLIC KEY BLOCK")
	assert.Contains(t, priv.KeyData, "BEGIN PGP PRIVATE KEY BLOCK")
	assert.Empty(t, pub.Signatures)
	assert.Greater(t, pub.Length, 0)

	require.NotNil(t, pub.ExpiryDate)
	assert.WithinDuration(t, expiry, *pub.ExpiryDate, 2*time.Second)
}

func TestGenerateKeyPastExpiry(t *testing.T) {
	engine := setup(t)

	_, err := engine.GenerateKey("alice@example.org", time.Now().Add(-time.Hour))
	assert.Error(t, err)
}

func TestGenerateKeyWithoutExpiry(t *testing.T) {
	engine := setup(t)

	pair, err := engine.GenerateKey("alice@example.org", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, pair.Public.ExpiryDate)
}

func TestParseKey(t *testing.T) {
	engine := setup(t)
	pair := generate(t, engine, "alice@example.org")

	t.Run("OK/Public", func(t *testing.T) {
		parsed, err := engine.ParseKey([]byte(pair.Public.KeyData), "alice@example.org")
		require.NoError(t, err)
		assert.Nil(t, parsed.Private)
		assert.Equal(t, pair.Public.Fingerprint, parsed.Public.Fingerprint)
		assert.Equal(t, pair.Public.ExpiryDate.Unix(), parsed.Public.ExpiryDate.Unix())
	})

	t.Run("OK/Private", func(t *testing.T) {
		parsed, err := engine.ParseKey([]byte(pair.Private.KeyData), "alice@example.org")
		require.NoError(t, err)
		require.NotNil(t, parsed.Private)
		assert.Equal(t, pair.Private.Fingerprint, parsed.Private.Fingerprint)
		assert.True(t, parsed.Private.Private)
	})

	t.Run("OK/AddressFromUID", func(t *testing.T) {
		parsed, err := engine.ParseKey([]byte(pair.Public.KeyData), "")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.org", parsed.Public.Address)
	})

	t.Run("Err/AddressMismatch", func(t *testing.T) {
		_, err := engine.ParseKey([]byte(pair.Public.KeyData), "bob@example.org")
		assert.ErrorIs(t, err, errs.ErrKeyAddressMismatch)
	})

	t.Run("Err/Garbage", func(t *testing.T) {
		_, err := engine.ParseKey([]byte("this is not a key"), "alice@example.org")
		assert.ErrorIs(t, err, errs.ErrKeyParse)
	})

	t.Run("Err/BrokenArmor", func(t *testing.T) {
		_, err := engine.ParseKey([]byte("-----BEGIN PGP PUBLIC KEY BLOCK-----\n\nAAAA\n-----END PGP PUBLIC KEY BLOCK-----"), "alice@example.org")
		assert.ErrorIs(t, err, errs.ErrKeyParse)
	})
}

func TestEncryptDecrypt(t *testing.T) {
	engine := setup(t)
	alice := generate(t, engine, "alice@example.org")
	bob := generate(t, engine, "bob@example.org")

	t.Run("OK/Unsigned", func(t *testing.T) {
		ct, err := engine.Encrypt([]byte("hello"), bob.Public, nil)
		require.NoError(t, err)
		assert.Contains(t, string(ct), "BEGIN PGP MESSAGE")

		pt, valid, err := engine.Decrypt(ct, bob.Private, nil)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(pt))
		assert.False(t, valid)
	})

	t.Run("OK/Signed", func(t *testing.T) {
		ct, err := engine.Encrypt([]byte("hello"), bob.Public, alice.Private)
		require.NoError(t, err)

		pt, valid, err := engine.Decrypt(ct, bob.Private, alice.Public)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(pt))
		assert.True(t, valid)
	})

	t.Run("OK/SignedByOther", func(t *testing.T) {
		carol := generate(t, engine, "carol@example.org")

		ct, err := engine.Encrypt([]byte("hello"), bob.Public, carol.Private)
		require.NoError(t, err)

		pt, valid, err := engine.Decrypt(ct, bob.Private, alice.Public)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(pt))
		assert.False(t, valid)
	})

	t.Run("Err/WrongKey", func(t *testing.T) {
		ct, err := engine.Encrypt([]byte("hello"), bob.Public, nil)
		require.NoError(t, err)

		_, _, err = engine.Decrypt(ct, alice.Private, nil)
		assert.ErrorIs(t, err, errs.ErrDecrypt)
	})

	t.Run("Err/NotAMessage", func(t *testing.T) {
		_, _, err := engine.Decrypt([]byte("plain text"), bob.Private, nil)
		assert.ErrorIs(t, err, errs.ErrDecrypt)
	})

	t.Run("Err/EncryptWithPublicSigner", func(t *testing.T) {
		_, err := engine.Encrypt([]byte("hello"), bob.Public, alice.Public)
		assert.Error(t, err)
	})
}

func TestSignVerify(t *testing.T) {
	engine := setup(t)
	alice := generate(t, engine, "alice@example.org")
	bob := generate(t, engine, "bob@example.org")
	data := []byte("signed text")

	t.Run("OK/Inline", func(t *testing.T) {
		signed, err := engine.Sign(data, alice.Private, false)
		require.NoError(t, err)

		valid, err := engine.Verify(signed, alice.Public, nil)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("OK/Detached", func(t *testing.T) {
		sig, err := engine.Sign(data, alice.Private, true)
		require.NoError(t, err)
		assert.Contains(t, string(sig), "BEGIN PGP SIGNATURE")

		valid, err := engine.Verify(data, alice.Public, sig)
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("Invalid/OtherKey", func(t *testing.T) {
		sig, err := engine.Sign(data, alice.Private, true)
		require.NoError(t, err)

		valid, err := engine.Verify(data, bob.Public, sig)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("Invalid/Tampered", func(t *testing.T) {
		sig, err := engine.Sign(data, alice.Private, true)
		require.NoError(t, err)

		valid, err := engine.Verify([]byte("other text"), alice.Public, sig)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("Invalid/NotSigned", func(t *testing.T) {
		valid, err := engine.Verify(data, alice.Public, nil)
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("Err/PublicSigner", func(t *testing.T) {
		_, err := engine.Sign(data, alice.Public, false)
		assert.ErrorIs(t, err, errs.ErrKeyParse)
	})
}

func TestSignKey(t *testing.T) {
	engine := setup(t)
	old := generate(t, engine, "alice@example.org")
	fresh := generate(t, engine, "alice@example.org")

	signed, err := engine.SignKey(fresh.Public, old.Private)
	require.NoError(t, err)
	assert.Equal(t, fresh.Public.Fingerprint, signed.Fingerprint)
	assert.Contains(t, signed.Signatures, old.Private.KeyID())
	assert.Empty(t, fresh.Public.Signatures)

	parsed, err := engine.ParseKey([]byte(signed.KeyData), "alice@example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{old.Public.KeyID()}, parsed.Public.Signatures)
}

func TestSetExpiry(t *testing.T) {
	engine := setup(t)
	pair := generate(t, engine, "alice@example.org")
	expiry := time.Now().AddDate(2, 0, 0)

	extended, err := engine.SetExpiry(pair.Private, expiry)
	require.NoError(t, err)
	require.NotNil(t, extended.Private)
	assert.Equal(t, pair.Public.Fingerprint, extended.Public.Fingerprint)
	require.NotNil(t, extended.Public.ExpiryDate)
	assert.WithinDuration(t, expiry, *extended.Public.ExpiryDate, 2*time.Second)

	parsed, err := engine.ParseKey([]byte(extended.Public.KeyData), "alice@example.org")
	require.NoError(t, err)
	assert.WithinDuration(t, expiry, *parsed.Public.ExpiryDate, 2*time.Second)

	ct, err := engine.Encrypt([]byte("still works"), extended.Public, nil)
	require.NoError(t, err)
	pt, _, err := engine.Decrypt(ct, extended.Private, nil)
	require.NoError(t, err)
	assert.Equal(t, "still works", string(pt))
}

func TestSetExpiryBeforeCreation(t *testing.T) {
	engine := setup(t)
	pair := generate(t, engine, "alice@example.org")

	_, err := engine.SetExpiry(pair.Private, time.Now().AddDate(-1, 0, 0))
	assert.Error(t, err)
}

func TestReadEntityNil(t *testing.T) {
	_, err := readEntity(nil)
	assert.True(t, errors.Is(err, errs.ErrKeyNotFound))
}
