package openpgp

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/engines/cryptoengines"
	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/sirupsen/logrus"
)

const messageBlockType = "PGP MESSAGE"

func Register() {
	cryptoengines.RegisterCryptoEngine(config.OpenPGPProvider, func(logger *logrus.Entry, conf config.CryptoEngine) (cryptoengines.CryptoEngine, error) {
		return NewOpenPGPEngine(logger, conf)
	})
}

type OpenPGPEngine struct {
	logger *logrus.Entry
	config config.CryptoEngine
	now    func() time.Time
}

func NewOpenPGPEngine(logger *logrus.Entry, conf config.CryptoEngine) (*OpenPGPEngine, error) {
	switch strings.ToLower(conf.Algorithm) {
	case "", "rsa":
		if conf.KeySize != 0 && conf.KeySize < 2048 {
			return nil, fmt.Errorf("rsa keys must be at least 2048 bits, got %d", conf.KeySize)
		}
	case "curve25519":
	default:
		return nil, fmt.Errorf("unsupported key algorithm '%s'", conf.Algorithm)
	}

	return &OpenPGPEngine{
		logger: logger,
		config: conf,
		now:    time.Now,
	}, nil
}

func (e *OpenPGPEngine) GetProvider() config.CryptoEngineProvider {
	return config.OpenPGPProvider
}

func (e *OpenPGPEngine) packetConfig() *packet.Config {
	cfg := &packet.Config{
		DefaultCipher: packet.CipherAES256,
		Time:          e.now,
	}

	if strings.EqualFold(e.config.Algorithm, "curve25519") {
		cfg.Algorithm = packet.PubKeyAlgoEdDSA
		cfg.Curve = packet.Curve25519
	} else {
		cfg.Algorithm = packet.PubKeyAlgoRSA
		cfg.RSABits = e.config.KeySize
	}

	return cfg
}

func (e *OpenPGPEngine) GenerateKey(address string, expiry time.Time) (*models.KeyPair, error) {
	lFunc := e.logger.WithField("func", "GenerateKey")

	cfg := e.packetConfig()
	if !expiry.IsZero() {
		lifetime := expiry.Sub(e.now())
		if lifetime <= 0 {
			return nil, fmt.Errorf("key expiry must be in the future")
		}
		cfg.KeyLifetimeSecs = uint32(lifetime.Seconds())
	}

	lFunc.Debugf("generating %v key for %s", cfg.Algorithm, address)
	entity, err := openpgp.NewEntity(address, "", address, cfg)
	if err != nil {
		lFunc.Errorf("could not generate key for %s: %s", address, err)
		return nil, err
	}

	return e.toKeyPair(entity, address)
}

func (e *OpenPGPEngine) ParseKey(material []byte, address string) (*models.KeyPair, error) {
	var entities openpgp.EntityList
	var err error
	if isArmored(material) {
		entities, err = openpgp.ReadArmoredKeyRing(bytes.NewReader(material))
	} else {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(material))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrKeyParse, err)
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: no keys in material", errs.ErrKeyParse)
	}

	if len(entities) > 1 {
		e.logger.Warnf("material holds %d keys, only the first one is used", len(entities))
	}

	entity := entities[0]
	if entity.PrivateKey != nil && entity.PrivateKey.Encrypted {
		return nil, fmt.Errorf("%w: passphrase protected private keys are not supported", errs.ErrKeyParse)
	}

	return e.toKeyPair(entity, address)
}

func (e *OpenPGPEngine) Encrypt(data []byte, recipient *models.Key, signer *models.Key) ([]byte, error) {
	to, err := readEntity(recipient)
	if err != nil {
		return nil, err
	}

	var from *openpgp.Entity
	if signer != nil {
		from, err = readPrivateEntity(signer)
		if err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	armored, err := armor.Encode(&buf, messageBlockType, nil)
	if err != nil {
		return nil, err
	}

	plaintext, err := openpgp.Encrypt(armored, []*openpgp.Entity{to}, from, nil, e.packetConfig())
	if err != nil {
		return nil, fmt.Errorf("could not encrypt to %s: %w", recipient.Fingerprint, err)
	}

	if _, err := plaintext.Write(data); err != nil {
		return nil, err
	}

	if err := plaintext.Close(); err != nil {
		return nil, err
	}

	if err := armored.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (e *OpenPGPEngine) Decrypt(ciphertext []byte, key *models.Key, verifier *models.Key) ([]byte, bool, error) {
	priv, err := readPrivateEntity(key)
	if err != nil {
		return nil, false, err
	}

	keyring := openpgp.EntityList{priv}
	var verifierEntity *openpgp.Entity
	if verifier != nil {
		verifierEntity, err = readEntity(verifier)
		if err != nil {
			return nil, false, err
		}
		keyring = append(keyring, verifierEntity)
	}

	body, err := messageReader(ciphertext)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", errs.ErrDecrypt, err)
	}

	md, err := openpgp.ReadMessage(body, keyring, nil, e.packetConfig())
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s", errs.ErrDecrypt, err)
	}

	if !md.IsEncrypted {
		return nil, false, fmt.Errorf("%w: message is not encrypted", errs.ErrDecrypt)
	}

	plaintext, readErr := io.ReadAll(md.UnverifiedBody)
	if readErr != nil && md.SignatureError == nil {
		return nil, false, fmt.Errorf("%w: %s", errs.ErrDecrypt, readErr)
	}

	if verifierEntity == nil {
		return plaintext, false, nil
	}

	return plaintext, signedBy(md, verifierEntity) && readErr == nil, nil
}

func (e *OpenPGPEngine) Sign(data []byte, key *models.Key, detach bool) ([]byte, error) {
	signer, err := readPrivateEntity(key)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if detach {
		if err := openpgp.ArmoredDetachSign(&buf, signer, bytes.NewReader(data), e.packetConfig()); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	armored, err := armor.Encode(&buf, messageBlockType, nil)
	if err != nil {
		return nil, err
	}

	w, err := openpgp.Sign(armored, signer, nil, e.packetConfig())
	if err != nil {
		return nil, err
	}

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	if err := armored.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (e *OpenPGPEngine) Verify(data []byte, key *models.Key, detachedSignature []byte) (bool, error) {
	entity, err := readEntity(key)
	if err != nil {
		return false, err
	}

	keyring := openpgp.EntityList{entity}
	if len(detachedSignature) > 0 {
		if isArmored(detachedSignature) {
			_, err = openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(detachedSignature), e.packetConfig())
		} else {
			_, err = openpgp.CheckDetachedSignature(keyring, bytes.NewReader(data), bytes.NewReader(detachedSignature), e.packetConfig())
		}
		if err != nil {
			e.logger.Debugf("detached signature does not verify against %s: %s", key.Fingerprint, err)
		}
		return err == nil, nil
	}

	body, err := messageReader(data)
	if err != nil {
		return false, nil
	}

	md, err := openpgp.ReadMessage(body, keyring, nil, e.packetConfig())
	if err != nil {
		e.logger.Debugf("signed message could not be read: %s", err)
		return false, nil
	}

	if _, err := io.ReadAll(md.UnverifiedBody); err != nil {
		return false, nil
	}

	return signedBy(md, entity), nil
}

func (e *OpenPGPEngine) SignKey(target *models.Key, signer *models.Key) (*models.Key, error) {
	targetEntity, err := readEntity(target)
	if err != nil {
		return nil, err
	}

	signerEntity, err := readPrivateEntity(signer)
	if err != nil {
		return nil, err
	}

	for name := range targetEntity.Identities {
		if err := targetEntity.SignIdentity(name, signerEntity, e.packetConfig()); err != nil {
			return nil, fmt.Errorf("could not sign identity %s: %w", name, err)
		}
	}

	armored, err := armorPublic(targetEntity)
	if err != nil {
		return nil, err
	}

	signed := *target
	signed.KeyData = armored
	signed.UIDs = slices.Clone(target.UIDs)
	signed.Signatures = slices.Clone(target.Signatures)
	if keyID := signer.KeyID(); !signed.HasSignature(keyID) {
		signed.Signatures = append(signed.Signatures, keyID)
	}

	return &signed, nil
}

func (e *OpenPGPEngine) SetExpiry(private *models.Key, expiry time.Time) (*models.KeyPair, error) {
	entity, err := readPrivateEntity(private)
	if err != nil {
		return nil, err
	}

	lifetime := expiry.Sub(entity.PrimaryKey.CreationTime)
	if lifetime <= 0 {
		return nil, fmt.Errorf("expiry %s is before key creation", expiry)
	}
	secs := uint32(lifetime.Seconds())

	for _, ident := range entity.Identities {
		if ident.SelfSignature == nil {
			return nil, fmt.Errorf("identity %s has no self signature", ident.Name)
		}
		ident.SelfSignature.KeyLifetimeSecs = &secs
	}

	for _, subkey := range entity.Subkeys {
		if subkey.Sig != nil {
			subkey.Sig.KeyLifetimeSecs = &secs
		}
	}

	// SerializePrivate re-signs the updated self signatures in place
	if err := entity.SerializePrivate(io.Discard, e.packetConfig()); err != nil {
		return nil, fmt.Errorf("could not re-sign key %s: %w", private.Fingerprint, err)
	}

	pair, err := e.toKeyPair(entity, private.Address)
	if err != nil {
		return nil, err
	}

	pair.Public.Signatures = slices.Clone(private.Signatures)
	pair.Private.Signatures = slices.Clone(private.Signatures)
	return pair, nil
}

func (e *OpenPGPEngine) toKeyPair(entity *openpgp.Entity, address string) (*models.KeyPair, error) {
	uids := entityUIDs(entity)
	if address == "" {
		if len(uids) == 0 {
			return nil, fmt.Errorf("%w: key has no email uid", errs.ErrKeyParse)
		}
		address = uids[0]
	} else if !slices.Contains(uids, strings.ToLower(address)) {
		return nil, fmt.Errorf("%w: key %X is bound to %v, not %s", errs.ErrKeyAddressMismatch, entity.PrimaryKey.Fingerprint, uids, address)
	}

	length, err := entity.PrimaryKey.BitLength()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrKeyParse, err)
	}

	pubArmor, err := armorPublic(entity)
	if err != nil {
		return nil, err
	}

	newKey := func(private bool, keyData string) *models.Key {
		return &models.Key{
			Fingerprint: fmt.Sprintf("%X", entity.PrimaryKey.Fingerprint),
			KeyData:     keyData,
			UIDs:        slices.Clone(uids),
			Address:     strings.ToLower(address),
			Private:     private,
			Length:      int(length),
			ExpiryDate:  entityExpiry(entity),
			Signatures:  certifiers(entity),
		}
	}

	pair := &models.KeyPair{Public: newKey(false, pubArmor)}
	if entity.PrivateKey != nil {
		privArmor, err := armorPrivate(entity)
		if err != nil {
			return nil, err
		}
		pair.Private = newKey(true, privArmor)
	}

	return pair, nil
}

func entityUIDs(entity *openpgp.Entity) []string {
	var uids []string
	for _, ident := range entity.Identities {
		if ident.UserId == nil || ident.UserId.Email == "" {
			continue
		}

		email := strings.ToLower(ident.UserId.Email)
		if !slices.Contains(uids, email) {
			uids = append(uids, email)
		}
	}

	slices.Sort(uids)
	return uids
}

func entityExpiry(entity *openpgp.Entity) *time.Time {
	ident := entity.PrimaryIdentity()
	if ident == nil || ident.SelfSignature == nil || ident.SelfSignature.KeyLifetimeSecs == nil || *ident.SelfSignature.KeyLifetimeSecs == 0 {
		return nil
	}

	expiry := entity.PrimaryKey.CreationTime.Add(time.Duration(*ident.SelfSignature.KeyLifetimeSecs) * time.Second).UTC()
	return &expiry
}

// certifiers lists the key ids of third parties that certified any identity of the key.
func certifiers(entity *openpgp.Entity) []string {
	signers := []string{}
	for _, ident := range entity.Identities {
		for _, sig := range ident.Signatures {
			if sig.IssuerKeyId == nil || *sig.IssuerKeyId == entity.PrimaryKey.KeyId {
				continue
			}

			if sig.SigType < packet.SigTypeGenericCert || sig.SigType > packet.SigTypePositiveCert {
				continue
			}

			keyID := fmt.Sprintf("%016X", *sig.IssuerKeyId)
			if !slices.Contains(signers, keyID) {
				signers = append(signers, keyID)
			}
		}
	}

	return signers
}

func signedBy(md *openpgp.MessageDetails, entity *openpgp.Entity) bool {
	return md.IsSigned && md.SignedBy != nil && md.SignatureError == nil &&
		md.SignedBy.Entity != nil && md.SignedBy.Entity.PrimaryKey.KeyId == entity.PrimaryKey.KeyId
}

func readEntity(key *models.Key) (*openpgp.Entity, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: no key given", errs.ErrKeyNotFound)
	}

	entities, err := openpgp.ReadArmoredKeyRing(strings.NewReader(key.KeyData))
	if err != nil {
		return nil, fmt.Errorf("%w: key %s: %s", errs.ErrKeyParse, key.Fingerprint, err)
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("%w: key %s holds no entity", errs.ErrKeyParse, key.Fingerprint)
	}

	return entities[0], nil
}

func readPrivateEntity(key *models.Key) (*openpgp.Entity, error) {
	entity, err := readEntity(key)
	if err != nil {
		return nil, err
	}

	if entity.PrivateKey == nil || entity.PrivateKey.Encrypted {
		return nil, fmt.Errorf("%w: key %s has no usable private material", errs.ErrKeyParse, key.Fingerprint)
	}

	return entity, nil
}

func armorPublic(entity *openpgp.Entity) (string, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return "", err
	}

	if err := entity.Serialize(w); err != nil {
		return "", err
	}

	if err := w.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func armorPrivate(entity *openpgp.Entity) (string, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		return "", err
	}

	if err := entity.SerializePrivateWithoutSigning(w, nil); err != nil {
		return "", err
	}

	if err := w.Close(); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func isArmored(material []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(material), []byte("-----BEGIN PGP"))
}

func messageReader(data []byte) (io.Reader, error) {
	if !isArmored(data) {
		return bytes.NewReader(data), nil
	}

	block, err := armor.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return block.Body, nil
}
