package eventpub

import (
	"context"
	"errors"

	lservices "github.com/leapcode/keymanager/backend/pkg/services"
	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
)

const KeyManagerSource = "keymanager"

type KeyManagerEventPublisher struct {
	Next       services.KeyManager
	eventMWPub ICloudEventPublisher
}

func NewKeyManagerEventBusPublisher(eventMWPub ICloudEventPublisher) lservices.KeyManagerMiddleware {
	return func(next services.KeyManager) services.KeyManager {
		return &KeyManagerEventPublisher{
			Next:       next,
			eventMWPub: NewEventPublisherWithSourceMiddleware(eventMWPub, KeyManagerSource),
		}
	}
}

func (mw KeyManagerEventPublisher) GetKey(ctx context.Context, input services.GetKeyInput) (output *models.Key, err error) {
	defer func() {
		switch {
		case err == nil:
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeyFound, keySubject(output.Address), models.NewKeyEvent(output))
		case errors.Is(err, errs.ErrKeyNotFound):
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeyNotFound, keySubject(input.Address), models.KeyEvent{Address: input.Address, Private: input.Private})
		}
	}()
	return mw.Next.GetKey(ctx, input)
}

func (mw KeyManagerEventPublisher) GetAllKeys(ctx context.Context, input services.GetAllKeysInput) ([]*models.Key, error) {
	return mw.Next.GetAllKeys(ctx, input)
}

func (mw KeyManagerEventPublisher) GetInactivePrivateKeys(ctx context.Context) ([]*models.Key, error) {
	return mw.Next.GetInactivePrivateKeys(ctx)
}

func (mw KeyManagerEventPublisher) PutRawKey(ctx context.Context, input services.PutRawKeyInput) (output *models.Key, err error) {
	defer func() {
		if err == nil {
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeyImported, keySubject(output.Address), models.NewKeyEvent(output))
		}
	}()
	return mw.Next.PutRawKey(ctx, input)
}

func (mw KeyManagerEventPublisher) FetchKey(ctx context.Context, input services.FetchKeyInput) (output *models.Key, err error) {
	defer func() {
		if err == nil {
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeyFetched, keySubject(output.Address), models.NewKeyEvent(output))
		}
	}()
	return mw.Next.FetchKey(ctx, input)
}

func (mw KeyManagerEventPublisher) FetchKeyFingerprint(ctx context.Context, input services.FetchKeyFingerprintInput) (output *models.Key, err error) {
	defer func() {
		if err == nil {
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeyFetched, keySubject(output.Address), models.NewKeyEvent(output))
		}
	}()
	return mw.Next.FetchKeyFingerprint(ctx, input)
}

func (mw KeyManagerEventPublisher) SendKey(ctx context.Context) (err error) {
	defer func() {
		if err == nil {
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeySent, "", struct{}{})
		}
	}()
	return mw.Next.SendKey(ctx)
}

func (mw KeyManagerEventPublisher) Encrypt(ctx context.Context, input services.EncryptInput) ([]byte, error) {
	return mw.Next.Encrypt(ctx, input)
}

func (mw KeyManagerEventPublisher) Decrypt(ctx context.Context, input services.DecryptInput) (*models.DecryptResult, error) {
	return mw.Next.Decrypt(ctx, input)
}

func (mw KeyManagerEventPublisher) Sign(ctx context.Context, input services.SignInput) ([]byte, error) {
	return mw.Next.Sign(ctx, input)
}

func (mw KeyManagerEventPublisher) Verify(ctx context.Context, input services.VerifyInput) (models.VerificationResult, error) {
	return mw.Next.Verify(ctx, input)
}

func (mw KeyManagerEventPublisher) GenerateKey(ctx context.Context) (output *models.Key, err error) {
	defer func() {
		if err == nil {
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeyGenerated, keySubject(output.Address), models.NewKeyEvent(output))
		}
	}()
	return mw.Next.GenerateKey(ctx)
}

func (mw KeyManagerEventPublisher) RegenerateKey(ctx context.Context) (output *models.Key, err error) {
	defer func() {
		if err == nil {
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeyRegenerated, keySubject(output.Address), models.NewKeyEvent(output))
		}
	}()
	return mw.Next.RegenerateKey(ctx)
}

func (mw KeyManagerEventPublisher) ExtendKey(ctx context.Context, input services.ExtendKeyInput) (output *models.Key, err error) {
	defer func() {
		if err == nil {
			mw.eventMWPub.PublishCloudEvent(ctx, models.EventKeyExtended, keySubject(output.Address), models.NewKeyEvent(output))
		}
	}()
	return mw.Next.ExtendKey(ctx, input)
}
