package otel

import (
	"context"

	lservices "github.com/leapcode/keymanager/backend/pkg/services"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
	"github.com/leapcode/keymanager/sdk"
	otelapi "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// KeyManagerOTelTracer opens one span per operation on the global tracer provider.
// Failed operations are recorded on their span.
type KeyManagerOTelTracer struct {
	next        services.KeyManager
	tracerName  string
	serviceName string
}

func NewKeyManagerOTelTracer() lservices.KeyManagerMiddleware {
	return func(next services.KeyManager) services.KeyManager {
		return &KeyManagerOTelTracer{
			next:        next,
			tracerName:  "keymanager-svc",
			serviceName: "Key Manager",
		}
	}
}

func (mw *KeyManagerOTelTracer) start(ctx context.Context, operation string) (context.Context, trace.Span) {
	return otelapi.GetTracerProvider().Tracer(mw.tracerName).Start(ctx, operation, trace.WithAttributes(attribute.String("service.name", mw.serviceName)))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (mw *KeyManagerOTelTracer) GetKey(ctx context.Context, input services.GetKeyInput) (output *models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.GetKey(ctx, input)
}

func (mw *KeyManagerOTelTracer) GetAllKeys(ctx context.Context, input services.GetAllKeysInput) (output []*models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.GetAllKeys(ctx, input)
}

func (mw *KeyManagerOTelTracer) GetInactivePrivateKeys(ctx context.Context) (output []*models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.GetInactivePrivateKeys(ctx)
}

func (mw *KeyManagerOTelTracer) PutRawKey(ctx context.Context, input services.PutRawKeyInput) (output *models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.PutRawKey(ctx, input)
}

func (mw *KeyManagerOTelTracer) FetchKey(ctx context.Context, input services.FetchKeyInput) (output *models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.FetchKey(ctx, input)
}

func (mw *KeyManagerOTelTracer) FetchKeyFingerprint(ctx context.Context, input services.FetchKeyFingerprintInput) (output *models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.FetchKeyFingerprint(ctx, input)
}

func (mw *KeyManagerOTelTracer) SendKey(ctx context.Context) (err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.SendKey(ctx)
}

func (mw *KeyManagerOTelTracer) Encrypt(ctx context.Context, input services.EncryptInput) (output []byte, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.Encrypt(ctx, input)
}

func (mw *KeyManagerOTelTracer) Decrypt(ctx context.Context, input services.DecryptInput) (output *models.DecryptResult, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.Decrypt(ctx, input)
}

func (mw *KeyManagerOTelTracer) Sign(ctx context.Context, input services.SignInput) (output []byte, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.Sign(ctx, input)
}

func (mw *KeyManagerOTelTracer) Verify(ctx context.Context, input services.VerifyInput) (output models.VerificationResult, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.Verify(ctx, input)
}

func (mw *KeyManagerOTelTracer) GenerateKey(ctx context.Context) (output *models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.GenerateKey(ctx)
}

func (mw *KeyManagerOTelTracer) RegenerateKey(ctx context.Context) (output *models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.RegenerateKey(ctx)
}

func (mw *KeyManagerOTelTracer) ExtendKey(ctx context.Context, input services.ExtendKeyInput) (output *models.Key, err error) {
	ctx, span := mw.start(ctx, sdk.GetCallerFunctionName())
	defer func() { end(span, err) }()

	return mw.next.ExtendKey(ctx, input)
}
