package metrics

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	lservices "github.com/leapcode/keymanager/backend/pkg/services"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
	"github.com/prometheus/client_golang/prometheus"
)

// NewKeyManagerMetrics registers the operation counter and latency histogram on reg.
func NewKeyManagerMetrics(reg prometheus.Registerer) (metrics.Counter, metrics.Histogram, error) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keymanager",
		Name:      "operations_total",
		Help:      "Number of key manager operations, by result.",
	}, []string{"operation", "result"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keymanager",
		Name:      "operation_duration_seconds",
		Help:      "Duration of key manager operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	for _, collector := range []prometheus.Collector{counter, latency} {
		if err := reg.Register(collector); err != nil {
			return nil, nil, err
		}
	}

	return kitprometheus.NewCounter(counter), kitprometheus.NewHistogram(latency), nil
}

type KeyManagerInstrumenting struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           services.KeyManager
}

func NewKeyManagerInstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) lservices.KeyManagerMiddleware {
	return func(next services.KeyManager) services.KeyManager {
		return &KeyManagerInstrumenting{
			requestCount:   counter,
			requestLatency: latency,
			next:           next,
		}
	}
}

func (mw *KeyManagerInstrumenting) observe(operation string, begin time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	mw.requestCount.With("operation", operation, "result", result).Add(1)
	mw.requestLatency.With("operation", operation).Observe(time.Since(begin).Seconds())
}

func (mw *KeyManagerInstrumenting) GetKey(ctx context.Context, input services.GetKeyInput) (output *models.Key, err error) {
	defer func(begin time.Time) { mw.observe("GetKey", begin, err) }(time.Now())
	return mw.next.GetKey(ctx, input)
}

func (mw *KeyManagerInstrumenting) GetAllKeys(ctx context.Context, input services.GetAllKeysInput) (output []*models.Key, err error) {
	defer func(begin time.Time) { mw.observe("GetAllKeys", begin, err) }(time.Now())
	return mw.next.GetAllKeys(ctx, input)
}

func (mw *KeyManagerInstrumenting) GetInactivePrivateKeys(ctx context.Context) (output []*models.Key, err error) {
	defer func(begin time.Time) { mw.observe("GetInactivePrivateKeys", begin, err) }(time.Now())
	return mw.next.GetInactivePrivateKeys(ctx)
}

func (mw *KeyManagerInstrumenting) PutRawKey(ctx context.Context, input services.PutRawKeyInput) (output *models.Key, err error) {
	defer func(begin time.Time) { mw.observe("PutRawKey", begin, err) }(time.Now())
	return mw.next.PutRawKey(ctx, input)
}

func (mw *KeyManagerInstrumenting) FetchKey(ctx context.Context, input services.FetchKeyInput) (output *models.Key, err error) {
	defer func(begin time.Time) { mw.observe("FetchKey", begin, err) }(time.Now())
	return mw.next.FetchKey(ctx, input)
}

func (mw *KeyManagerInstrumenting) FetchKeyFingerprint(ctx context.Context, input services.FetchKeyFingerprintInput) (output *models.Key, err error) {
	defer func(begin time.Time) { mw.observe("FetchKeyFingerprint", begin, err) }(time.Now())
	return mw.next.FetchKeyFingerprint(ctx, input)
}

func (mw *KeyManagerInstrumenting) SendKey(ctx context.Context) (err error) {
	defer func(begin time.Time) { mw.observe("SendKey", begin, err) }(time.Now())
	return mw.next.SendKey(ctx)
}

func (mw *KeyManagerInstrumenting) Encrypt(ctx context.Context, input services.EncryptInput) (output []byte, err error) {
	defer func(begin time.Time) { mw.observe("Encrypt", begin, err) }(time.Now())
	return mw.next.Encrypt(ctx, input)
}

func (mw *KeyManagerInstrumenting) Decrypt(ctx context.Context, input services.DecryptInput) (output *models.DecryptResult, err error) {
	defer func(begin time.Time) { mw.observe("Decrypt", begin, err) }(time.Now())
	return mw.next.Decrypt(ctx, input)
}

func (mw *KeyManagerInstrumenting) Sign(ctx context.Context, input services.SignInput) (output []byte, err error) {
	defer func(begin time.Time) { mw.observe("Sign", begin, err) }(time.Now())
	return mw.next.Sign(ctx, input)
}

func (mw *KeyManagerInstrumenting) Verify(ctx context.Context, input services.VerifyInput) (output models.VerificationResult, err error) {
	defer func(begin time.Time) { mw.observe("Verify", begin, err) }(time.Now())
	return mw.next.Verify(ctx, input)
}

func (mw *KeyManagerInstrumenting) GenerateKey(ctx context.Context) (output *models.Key, err error) {
	defer func(begin time.Time) { mw.observe("GenerateKey", begin, err) }(time.Now())
	return mw.next.GenerateKey(ctx)
}

func (mw *KeyManagerInstrumenting) RegenerateKey(ctx context.Context) (output *models.Key, err error) {
	defer func(begin time.Time) { mw.observe("RegenerateKey", begin, err) }(time.Now())
	return mw.next.RegenerateKey(ctx)
}

func (mw *KeyManagerInstrumenting) ExtendKey(ctx context.Context, input services.ExtendKeyInput) (output *models.Key, err error) {
	defer func(begin time.Time) { mw.observe("ExtendKey", begin, err) }(time.Now())
	return mw.next.ExtendKey(ctx, input)
}
