package jobs

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/leapcode/keymanager/backend/pkg/middlewares/eventpub"
	lservices "github.com/leapcode/keymanager/backend/pkg/services"
	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/core/pkg/services"
	"github.com/sirupsen/logrus"
)

const refresherSource = "refresher"

// KeyRefresher is the part of the key manager backend the refresher drives.
type KeyRefresher interface {
	GetAllKeys(ctx context.Context, input services.GetAllKeysInput) ([]*models.Key, error)
	RefreshKey(ctx context.Context, input lservices.RefreshKeyInput) (*lservices.RefreshKeyOutput, error)
}

// RandomRefresher re-validates one random non-deactivated public key against the directory every
// MinInterval plus a random share of Jitter. Ticks never overlap: the next wait starts once
// the current refresh has settled.
type RandomRefresher struct {
	logger    *logrus.Entry
	service   KeyRefresher
	publisher eventpub.ICloudEventPublisher

	minInterval time.Duration
	jitter      time.Duration

	randMu sync.Mutex
	rand   *rand.Rand

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRandomRefresher builds a stopped refresher. publisher may be nil.
func NewRandomRefresher(logger *logrus.Entry, service KeyRefresher, conf config.Refresher, publisher eventpub.ICloudEventPublisher) *RandomRefresher {
	minInterval := conf.MinInterval
	if minInterval <= 0 {
		minInterval = config.KeyManagerDefaults.Refresher.MinInterval
	}

	jitter := conf.Jitter
	if jitter <= 0 {
		jitter = minInterval / 2
	}

	return &RandomRefresher{
		logger:      logger,
		service:     service,
		publisher:   publisher,
		minInterval: minInterval,
		jitter:      jitter,
		rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RandomRefresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	r.logger.Debug("starting key refresher")
	go r.loop(ctx, r.done)
}

// Stop cancels the pending wait and blocks until an in-flight refresh has settled.
func (r *RandomRefresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	r.logger.Debug("key refresher stopped")
}

func (r *RandomRefresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *RandomRefresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		interval := r.NextInterval()
		r.logger.Tracef("next key refresh in %s", interval)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := r.Tick(ctx); err != nil {
			r.logger.Warnf("key refresh failed: %s", err)
		}
	}
}

// NextInterval draws the wait before the next tick, in [minInterval, minInterval+jitter].
func (r *RandomRefresher) NextInterval() time.Duration {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return r.minInterval + time.Duration(r.rand.Int63n(int64(r.jitter)+1))
}

// RandomKey picks one of the public keys not yet deactivated, or nil when there is none.
// Expired keys stay candidates so RefreshKey gets the chance to deactivate them.
func (r *RandomRefresher) RandomKey(ctx context.Context) (*models.Key, error) {
	keys, err := r.service.GetAllKeys(ctx, services.GetAllKeysInput{})
	if err != nil {
		return nil, err
	}

	candidates := make([]*models.Key, 0, len(keys))
	for _, key := range keys {
		if !key.IsDeactivated() {
			candidates = append(candidates, key)
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	r.randMu.Lock()
	defer r.randMu.Unlock()
	return candidates[r.rand.Intn(len(candidates))], nil
}

// Tick refreshes one random key. A fingerprint mismatch is logged and reported as an event,
// not returned: it is an expected outcome when the directory serves a rotated key.
func (r *RandomRefresher) Tick(ctx context.Context) error {
	ctx = context.WithValue(ctx, helpers.CtxSource, refresherSource)
	lFunc := helpers.ConfigureLogger(ctx, r.logger)

	key, err := r.RandomKey(ctx)
	if err != nil {
		return err
	}

	if key == nil {
		lFunc.Debug("no keys to refresh")
		return nil
	}

	lFunc.Debugf("refreshing key %s of %s", key.Fingerprint, key.Address)
	out, err := r.service.RefreshKey(ctx, lservices.RefreshKeyInput{
		Fingerprint: key.Fingerprint,
		Address:     key.Address,
	})

	var mismatch *lservices.FingerprintMismatchError
	if errors.As(err, &mismatch) {
		lFunc.Errorf("fingerprints do not match: requested %s, received %s", mismatch.Requested, mismatch.Received)
		r.publish(ctx, models.EventRefreshFingerprintMismatch, key.Address, models.FingerprintMismatchEvent{
			Address:   mismatch.Address,
			Requested: mismatch.Requested,
			Received:  mismatch.Received,
		})
		return nil
	}

	if err != nil {
		return err
	}

	r.publish(ctx, models.EventKeyRefreshed, out.Key.Address, models.NewKeyEvent(out.Key))
	if out.Deactivated {
		lFunc.Infof("key %s of %s expired and was deactivated", out.Key.Fingerprint, out.Key.Address)
		r.publish(ctx, models.EventKeyDeactivated, out.Key.Address, models.NewKeyEvent(out.Key))
	}

	return nil
}

func (r *RandomRefresher) publish(ctx context.Context, eventType models.EventType, address string, payload interface{}) {
	if r.publisher == nil {
		return
	}
	r.publisher.PublishCloudEvent(ctx, eventType, "key/"+address, payload)
}
