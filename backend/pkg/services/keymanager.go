package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/engines/cryptoengines"
	"github.com/leapcode/keymanager/core/pkg/engines/storage"
	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
	"github.com/sirupsen/logrus"
)

const defaultKeyExpiry = "1y"

type KeyManagerMiddleware func(services.KeyManager) services.KeyManager

type KeyManagerBackend struct {
	service        services.KeyManager
	session        config.Session
	providerDomain string
	keyExpiry      models.Validity
	keyStorage     storage.KeysRepo
	cryptoEngine   cryptoengines.CryptoEngine
	directory      services.DirectoryClient
	fetcher        services.RawKeyFetcher
	locks          *pairLocks
	now            func() time.Time
	logger         *logrus.Entry
}

type KeyManagerBuilder struct {
	Logger       *logrus.Entry
	Session      config.Session
	KeyStorage   storage.KeysRepo
	CryptoEngine cryptoengines.CryptoEngine
	Directory    services.DirectoryClient
	Fetcher      services.RawKeyFetcher
	// ProviderDomain defaults to the domain of the session address.
	ProviderDomain string
	// KeyExpiry is a validity expression for generated keys. Defaults to one year.
	KeyExpiry string
	Clock     func() time.Time
}

var kmValidator *validator.Validate

func NewKeyManagerService(builder KeyManagerBuilder) (*KeyManagerBackend, error) {
	kmValidator = validator.New()

	if builder.KeyStorage == nil || builder.CryptoEngine == nil {
		return nil, fmt.Errorf("key storage and crypto engine are required")
	}

	if builder.Session.Address == "" {
		return nil, fmt.Errorf("session address is required")
	}

	expiryExpr := builder.KeyExpiry
	if expiryExpr == "" {
		expiryExpr = defaultKeyExpiry
	}

	keyExpiry, err := models.ParseValidity(expiryExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid key expiry: %w", err)
	}

	providerDomain := builder.ProviderDomain
	if providerDomain == "" {
		providerDomain = domainOf(builder.Session.Address)
	}

	now := builder.Clock
	if now == nil {
		now = time.Now
	}

	svc := &KeyManagerBackend{
		session:        builder.Session,
		providerDomain: strings.ToLower(providerDomain),
		keyExpiry:      keyExpiry,
		keyStorage:     builder.KeyStorage,
		cryptoEngine:   builder.CryptoEngine,
		directory:      builder.Directory,
		fetcher:        builder.Fetcher,
		locks:          newPairLocks(),
		now:            now,
		logger:         builder.Logger,
	}

	svc.service = svc

	return svc, nil
}

func (svc *KeyManagerBackend) SetService(service services.KeyManager) {
	svc.service = service
}

func (svc *KeyManagerBackend) GetKey(ctx context.Context, input services.GetKeyInput) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("GetKeyInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	exists, key, err := svc.keyStorage.SelectCurrent(ctx, input.Address, input.Private)
	if err != nil {
		lFunc.Errorf("something went wrong while reading %s key of %s from storage engine: %s", models.KeyKind(input.Private), input.Address, err)
		return nil, err
	}

	if exists && !input.Private && key.IsExpired(svc.now()) {
		lFunc.Debugf("stored public key %s of %s expired at %s", key.Fingerprint, input.Address, key.ExpiryDate)
		exists = false
	}

	if exists {
		return key, nil
	}

	if input.Private || input.LocalOnly {
		lFunc.Debugf("no local %s key for %s", models.KeyKind(input.Private), input.Address)
		return nil, fmt.Errorf("%w: no %s key for %s", errs.ErrKeyNotFound, models.KeyKind(input.Private), input.Address)
	}

	if svc.directory == nil {
		return nil, fmt.Errorf("%w: no directory configured to look up %s", errs.ErrKeyNotFound, input.Address)
	}

	lFunc.Debugf("looking up public key of %s in the directory", input.Address)
	res, err := svc.directory.FetchByAddress(ctx, input.Address)
	if err != nil {
		lFunc.Warnf("directory lookup of %s failed: %s", input.Address, err)
		return nil, err
	}

	pair, err := svc.cryptoEngine.ParseKey([]byte(res.OpenPGP), input.Address)
	if err != nil {
		lFunc.Errorf("directory returned unusable key for %s: %s", input.Address, err)
		return nil, err
	}
	pair.Private = nil

	return svc.storePair(ctx, pair, svc.directoryTrust(input.Address), false)
}

func (svc *KeyManagerBackend) GetAllKeys(ctx context.Context, input services.GetAllKeysInput) ([]*models.Key, error) {
	return svc.keyStorage.SelectAll(ctx, input.Private)
}

func (svc *KeyManagerBackend) GetInactivePrivateKeys(ctx context.Context) ([]*models.Key, error) {
	return svc.keyStorage.SelectInactive(ctx, true)
}

func (svc *KeyManagerBackend) PutRawKey(ctx context.Context, input services.PutRawKeyInput) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("PutRawKeyInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	pair, err := svc.cryptoEngine.ParseKey(input.Material, input.Address)
	if err != nil {
		lFunc.Errorf("could not parse key material for %s: %s", input.Address, err)
		return nil, err
	}

	key, err := svc.storePair(ctx, pair, input.Validation, false)
	if err != nil {
		return nil, err
	}

	lFunc.Infof("imported %s key %s for %s", models.KeyKind(pair.Private != nil), key.Fingerprint, key.Address)

	if pair.Private != nil && svc.isOwnAddress(key.Address) {
		if err := svc.service.SendKey(ctx); err != nil {
			lFunc.Errorf("imported private key %s but could not publish it: %s", key.Fingerprint, err)
			return nil, err
		}
	}

	return key, nil
}

func (svc *KeyManagerBackend) FetchKey(ctx context.Context, input services.FetchKeyInput) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("FetchKeyInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	if svc.fetcher == nil {
		return nil, fmt.Errorf("no key fetcher configured")
	}

	material, level, err := svc.fetcher.Fetch(ctx, input.URL)
	if err != nil {
		lFunc.Warnf("could not fetch key for %s from %s: %s", input.Address, input.URL, err)
		return nil, err
	}

	if len(bytes.TrimSpace(material)) == 0 {
		return nil, fmt.Errorf("%w: empty response from %s", errs.ErrKeyNotFound, input.URL)
	}

	pair, err := svc.cryptoEngine.ParseKey(material, input.Address)
	if err != nil {
		lFunc.Errorf("key fetched from %s is not usable for %s: %s", input.URL, input.Address, err)
		return nil, err
	}
	pair.Private = nil

	lFunc.Debugf("fetched key %s for %s at %s", pair.Public.Fingerprint, input.Address, level)
	return svc.storePair(ctx, pair, level, false)
}

func (svc *KeyManagerBackend) FetchKeyFingerprint(ctx context.Context, input services.FetchKeyFingerprintInput) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("FetchKeyFingerprintInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	pair, err := svc.fetchByFingerprint(ctx, input.Fingerprint, input.Address)
	if err != nil {
		var mismatch *FingerprintMismatchError
		if errors.As(err, &mismatch) {
			lFunc.Warnf("%s", mismatch)
			return nil, fmt.Errorf("%w: %s", errs.ErrKeyNotFound, mismatch)
		}
		return nil, err
	}

	return svc.storePair(ctx, pair, svc.directoryTrust(input.Address), true)
}

func (svc *KeyManagerBackend) SendKey(ctx context.Context) error {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if svc.directory == nil {
		return fmt.Errorf("no directory configured")
	}

	key, err := svc.service.GetKey(ctx, services.GetKeyInput{
		Address:   svc.session.Address,
		LocalOnly: true,
	})
	if err != nil {
		lFunc.Errorf("could not get own public key: %s", err)
		return err
	}

	if err := svc.directory.PutKey(ctx, key.KeyData); err != nil {
		lFunc.Errorf("could not publish key %s: %s", key.Fingerprint, err)
		return err
	}

	lFunc.Infof("published key %s for %s", key.Fingerprint, key.Address)
	return nil
}

func (svc *KeyManagerBackend) Encrypt(ctx context.Context, input services.EncryptInput) ([]byte, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("EncryptInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	recipient, err := svc.service.GetKey(ctx, services.GetKeyInput{Address: input.Address, LocalOnly: input.LocalOnly})
	if err != nil {
		return nil, err
	}

	var signer *models.Key
	if input.SignWith != "" {
		signer, err = svc.service.GetKey(ctx, services.GetKeyInput{Address: input.SignWith, Private: true})
		if err != nil {
			return nil, err
		}
	}

	ciphertext, err := svc.cryptoEngine.Encrypt(input.Data, recipient, signer)
	if err != nil {
		lFunc.Errorf("could not encrypt to %s: %s", recipient.Fingerprint, err)
		return nil, err
	}

	if err := svc.markUsed(ctx, recipient, false); err != nil {
		lFunc.Warnf("could not flag key %s as used for encryption: %s", recipient.Fingerprint, err)
	}

	return ciphertext, nil
}

func (svc *KeyManagerBackend) Decrypt(ctx context.Context, input services.DecryptInput) (*models.DecryptResult, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("DecryptInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	var verifier *models.Key
	var err error
	if input.VerifyWith != "" {
		verifier, err = svc.service.GetKey(ctx, services.GetKeyInput{Address: input.VerifyWith, LocalOnly: input.LocalOnly})
		if err != nil {
			return nil, err
		}
	}

	candidates, err := svc.decryptionCandidates(ctx, input.Address)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		plaintext, valid, err := svc.cryptoEngine.Decrypt(input.Ciphertext, candidate, verifier)
		if err != nil {
			lFunc.Debugf("key %s could not decrypt: %s", candidate.Fingerprint, err)
			continue
		}

		if candidate.IsDeactivated() {
			lFunc.Infof("decrypted with inactive key %s", candidate.Fingerprint)
		}

		result := &models.DecryptResult{Plaintext: plaintext}
		if verifier == nil {
			return result, nil
		}

		if !valid {
			result.Verification = models.InvalidSignature{Address: input.VerifyWith, Reason: "signature does not match " + verifier.Fingerprint}
			return result, nil
		}

		if err := svc.markUsed(ctx, verifier, true); err != nil {
			lFunc.Warnf("could not flag key %s as used for verification: %s", verifier.Fingerprint, err)
		}
		result.Verification = models.VerifiedKey{Key: verifier}
		return result, nil
	}

	lFunc.Warnf("none of the %d private keys of %s decrypts the message", len(candidates), input.Address)
	return nil, fmt.Errorf("%w: tried %d keys of %s", errs.ErrDecrypt, len(candidates), input.Address)
}

func (svc *KeyManagerBackend) Sign(ctx context.Context, input services.SignInput) ([]byte, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("SignInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	key, err := svc.service.GetKey(ctx, services.GetKeyInput{Address: input.Address, Private: true})
	if err != nil {
		return nil, err
	}

	return svc.cryptoEngine.Sign(input.Data, key, input.Detach)
}

func (svc *KeyManagerBackend) Verify(ctx context.Context, input services.VerifyInput) (models.VerificationResult, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("VerifyInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	key, err := svc.service.GetKey(ctx, services.GetKeyInput{Address: input.Address, LocalOnly: input.LocalOnly})
	if err != nil {
		return nil, err
	}

	valid, err := svc.cryptoEngine.Verify(input.Data, key, input.DetachedSignature)
	if err != nil {
		return nil, err
	}

	if !valid {
		return models.InvalidSignature{Address: input.Address, Reason: "signature does not match " + key.Fingerprint}, nil
	}

	if err := svc.markUsed(ctx, key, true); err != nil {
		lFunc.Warnf("could not flag key %s as used for verification: %s", key.Fingerprint, err)
	}

	return models.VerifiedKey{Key: key}, nil
}

func (svc *KeyManagerBackend) GenerateKey(ctx context.Context) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	address := svc.session.Address

	key, err := func() (*models.Key, error) {
		unlockPriv := svc.locks.Lock(address, true)
		defer unlockPriv()
		unlockPub := svc.locks.Lock(address, false)
		defer unlockPub()

		exists, current, err := svc.keyStorage.SelectCurrent(ctx, address, true)
		if err != nil {
			return nil, err
		}

		if exists {
			lFunc.Warnf("%s already owns key %s", address, current.Fingerprint)
			return nil, fmt.Errorf("%w: %s", errs.ErrKeyAlreadyExists, current.Fingerprint)
		}

		lFunc.Infof("generating key for %s", address)
		pair, err := svc.cryptoEngine.GenerateKey(address, svc.keyExpiry.AddTo(svc.now()))
		if err != nil {
			lFunc.Errorf("could not generate key for %s: %s", address, err)
			return nil, err
		}

		return svc.storePairLocked(ctx, pair, models.ProviderTrust, false)
	}()
	if err != nil {
		return nil, err
	}

	if err := svc.service.SendKey(ctx); err != nil {
		return nil, fmt.Errorf("key %s generated but not published: %w", key.Fingerprint, err)
	}

	return key, nil
}

func (svc *KeyManagerBackend) RegenerateKey(ctx context.Context) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	address := svc.session.Address

	key, err := func() (*models.Key, error) {
		unlockPriv := svc.locks.Lock(address, true)
		defer unlockPriv()
		unlockPub := svc.locks.Lock(address, false)
		defer unlockPub()

		exists, oldPriv, err := svc.keyStorage.SelectCurrent(ctx, address, true)
		if err != nil {
			return nil, err
		}

		if !exists {
			return nil, fmt.Errorf("%w: no private key to rotate for %s", errs.ErrKeyNotFound, address)
		}

		now := svc.now()
		pair, err := svc.cryptoEngine.GenerateKey(address, now.AddDate(1, 0, 0))
		if err != nil {
			lFunc.Errorf("could not generate key for %s: %s", address, err)
			return nil, err
		}

		signed, err := svc.cryptoEngine.SignKey(pair.Public, oldPriv)
		if err != nil {
			lFunc.Errorf("could not sign new key %s with %s: %s", pair.Public.Fingerprint, oldPriv.Fingerprint, err)
			return nil, err
		}
		pair.Public = signed
		pair.Private.Signatures = slices.Clone(signed.Signatures)

		key, err := svc.storePairLocked(ctx, pair, models.ProviderTrust, false)
		if err != nil {
			return nil, err
		}

		if err := svc.resetSignUsed(ctx, key); err != nil {
			lFunc.Errorf("could not reset sign_used flags: %s", err)
			return nil, err
		}

		lFunc.Infof("rotated key of %s from %s to %s", address, oldPriv.Fingerprint, key.Fingerprint)
		return key, nil
	}()
	if err != nil {
		return nil, err
	}

	if err := svc.service.SendKey(ctx); err != nil {
		lFunc.Errorf("rotated key %s could not be published: %s", key.Fingerprint, err)
		return nil, err
	}

	return key, nil
}

func (svc *KeyManagerBackend) ExtendKey(ctx context.Context, input services.ExtendKeyInput) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("ExtendKeyInput struct validation error: %s", err)
		return nil, fmt.Errorf("%w: empty validity", errs.ErrKeyExpiryExtension)
	}

	validity, err := models.ParseValidity(input.Validity)
	if err != nil {
		lFunc.Errorf("could not parse validity '%s': %s", input.Validity, err)
		return nil, fmt.Errorf("%w: %s", errs.ErrKeyExpiryExtension, err)
	}

	address := svc.session.Address
	key, err := func() (*models.Key, error) {
		unlockPriv := svc.locks.Lock(address, true)
		defer unlockPriv()
		unlockPub := svc.locks.Lock(address, false)
		defer unlockPub()

		exists, priv, err := svc.keyStorage.SelectCurrent(ctx, address, true)
		if err != nil {
			return nil, err
		}

		if !exists {
			return nil, fmt.Errorf("%w: no private key to extend for %s", errs.ErrKeyNotFound, address)
		}

		base := svc.now()
		if priv.ExpiryDate != nil && priv.ExpiryDate.After(base) {
			base = *priv.ExpiryDate
		}
		expiry := validity.AddTo(base)

		extended, err := svc.cryptoEngine.SetExpiry(priv, expiry)
		if err != nil {
			lFunc.Errorf("could not extend key %s: %s", priv.Fingerprint, err)
			return nil, fmt.Errorf("%w: %s", errs.ErrKeyExpiryExtension, err)
		}

		updatedPriv := *priv
		updatedPriv.KeyData = extended.Private.KeyData
		updatedPriv.ExpiryDate = extended.Private.ExpiryDate

		pubExists, pub, err := svc.keyStorage.SelectExists(ctx, models.RecordID(priv.Fingerprint, address, false))
		if err != nil {
			return nil, err
		}

		updatedPub := extended.Public
		if pubExists {
			copied := *pub
			copied.KeyData = extended.Public.KeyData
			copied.ExpiryDate = extended.Public.ExpiryDate
			updatedPub = &copied
		}

		// both records change in one transaction
		if _, err := svc.keyStorage.Supersede(ctx, &updatedPriv, []*models.Key{updatedPub}); err != nil {
			return nil, err
		}

		lFunc.Infof("extended key %s until %s", priv.Fingerprint, expiry.Format(time.RFC3339))
		return updatedPub, nil
	}()
	if err != nil {
		return nil, err
	}

	if err := svc.service.SendKey(ctx); err != nil {
		lFunc.Errorf("extended key %s could not be published: %s", key.Fingerprint, err)
		return nil, err
	}

	return key, nil
}

func (svc *KeyManagerBackend) fetchByFingerprint(ctx context.Context, fingerprint, address string) (*models.KeyPair, error) {
	if svc.directory == nil {
		return nil, fmt.Errorf("no directory configured")
	}

	res, err := svc.directory.FetchByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, err
	}

	pair, err := svc.cryptoEngine.ParseKey([]byte(res.OpenPGP), address)
	if err != nil {
		return nil, err
	}
	pair.Private = nil

	if !strings.EqualFold(pair.Public.Fingerprint, fingerprint) {
		return nil, &FingerprintMismatchError{Address: address, Requested: strings.ToUpper(fingerprint), Received: pair.Public.Fingerprint}
	}

	return pair, nil
}

// decryptionCandidates lists the private keys of address: the current one first, then
// the inactive ones, most recently deactivated first.
func (svc *KeyManagerBackend) decryptionCandidates(ctx context.Context, address string) ([]*models.Key, error) {
	keys, err := svc.keyStorage.SelectByAddress(ctx, address, true)
	if err != nil {
		return nil, err
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no private key for %s", errs.ErrKeyNotFound, address)
	}

	slices.SortStableFunc(keys, func(a, b *models.Key) int {
		switch {
		case a.DeactivatedAt == nil && b.DeactivatedAt == nil:
			return 0
		case a.DeactivatedAt == nil:
			return -1
		case b.DeactivatedAt == nil:
			return 1
		default:
			return b.DeactivatedAt.Compare(*a.DeactivatedAt)
		}
	})

	return keys, nil
}

// storePair takes the pair locks and stores both records. See storePairLocked.
func (svc *KeyManagerBackend) storePair(ctx context.Context, pair *models.KeyPair, level models.ValidationLevel, carryFlags bool) (*models.Key, error) {
	address := pair.Public.Address
	if pair.Private != nil {
		unlockPriv := svc.locks.Lock(address, true)
		defer unlockPriv()
	}

	unlockPub := svc.locks.Lock(address, false)
	defer unlockPub()

	return svc.storePairLocked(ctx, pair, level, carryFlags)
}

// storePairLocked makes the pair the current records of its address and deactivates
// the records they replace. It returns the stored public record.
func (svc *KeyManagerBackend) storePairLocked(ctx context.Context, pair *models.KeyPair, level models.ValidationLevel, carryFlags bool) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	address := pair.Public.Address

	if pair.Private == nil {
		exists, priv, err := svc.keyStorage.SelectCurrent(ctx, address, true)
		if err != nil {
			return nil, err
		}

		if exists || svc.isOwnAddress(address) {
			lFunc.Warnf("refusing public only key %s for %s", pair.Public.Fingerprint, address)
			if exists {
				return nil, fmt.Errorf("%w: %s holds private key %s", errs.ErrKeyNotValidUpgrade, address, priv.Fingerprint)
			}
			return nil, fmt.Errorf("%w: own address %s needs private material", errs.ErrKeyNotValidUpgrade, address)
		}
	}

	if pair.Private != nil {
		if _, err := svc.storeKey(ctx, pair.Private, level, carryFlags); err != nil {
			return nil, err
		}
	}

	return svc.storeKey(ctx, pair.Public, level, carryFlags)
}

func (svc *KeyManagerBackend) storeKey(ctx context.Context, key *models.Key, level models.ValidationLevel, carryFlags bool) (*models.Key, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)
	now := svc.now()

	_, current, err := svc.keyStorage.SelectCurrent(ctx, key.Address, key.Private)
	if err != nil {
		return nil, err
	}

	sameExists, same, err := svc.keyStorage.SelectExists(ctx, key.RecordID())
	if err != nil {
		return nil, err
	}

	key.Validation = level
	key.RefreshedAt = &now
	key.DeactivatedAt = nil

	switch {
	case sameExists:
		key.SignUsed, key.EncrUsed = same.SignUsed, same.EncrUsed
		key.LastAuditedAt = same.LastAuditedAt
		key.Validation = max(level, same.Validation)
		for _, sig := range same.Signatures {
			if !key.HasSignature(sig) {
				key.Signatures = append(key.Signatures, sig)
			}
		}
	case carryFlags && current != nil:
		key.SignUsed, key.EncrUsed = current.SignUsed, current.EncrUsed
	}

	var superseded []*models.Key
	if current != nil && current.RecordID() != key.RecordID() {
		current.DeactivatedAt = &now
		superseded = append(superseded, current)
		lFunc.Infof("%s key %s of %s superseded by %s", models.KeyKind(key.Private), current.Fingerprint, key.Address, key.Fingerprint)
	}

	return svc.keyStorage.Supersede(ctx, key, superseded)
}

func (svc *KeyManagerBackend) markUsed(ctx context.Context, key *models.Key, sign bool) error {
	unlock := svc.locks.Lock(key.Address, key.Private)
	defer unlock()

	exists, stored, err := svc.keyStorage.SelectExists(ctx, key.RecordID())
	if err != nil || !exists {
		return err
	}

	if sign {
		if stored.SignUsed {
			return nil
		}
		stored.SignUsed = true
		key.SignUsed = true
	} else {
		if stored.EncrUsed {
			return nil
		}
		stored.EncrUsed = true
		key.EncrUsed = true
	}

	_, err = svc.keyStorage.Update(ctx, stored)
	return err
}

// resetSignUsed clears sign_used on every public record except keep. The own address
// public lock is already held by the caller.
func (svc *KeyManagerBackend) resetSignUsed(ctx context.Context, keep *models.Key) error {
	keys, err := svc.keyStorage.SelectAll(ctx, false)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if key.RecordID() == keep.RecordID() || !key.SignUsed {
			continue
		}

		err := func() error {
			if !svc.isOwnAddress(key.Address) {
				unlock := svc.locks.Lock(key.Address, false)
				defer unlock()
			}

			exists, stored, err := svc.keyStorage.SelectExists(ctx, key.RecordID())
			if err != nil || !exists {
				return err
			}

			stored.SignUsed = false
			_, err = svc.keyStorage.Update(ctx, stored)
			return err
		}()
		if err != nil {
			return err
		}
	}

	return nil
}

func (svc *KeyManagerBackend) directoryTrust(address string) models.ValidationLevel {
	if svc.providerDomain != "" && strings.EqualFold(domainOf(address), svc.providerDomain) {
		return models.ProviderTrust
	}
	return models.WeakChain
}

func (svc *KeyManagerBackend) isOwnAddress(address string) bool {
	return strings.EqualFold(address, svc.session.Address)
}

func domainOf(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return ""
	}
	return strings.ToLower(address[at+1:])
}
