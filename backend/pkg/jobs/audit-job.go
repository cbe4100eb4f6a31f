package jobs

import (
	"context"
	"time"

	"github.com/leapcode/keymanager/backend/pkg/middlewares/eventpub"
	lservices "github.com/leapcode/keymanager/backend/pkg/services"
	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/sirupsen/logrus"
)

const auditSource = "key-audit"

type KeyAuditor interface {
	AuditKeys(ctx context.Context) (*lservices.AuditKeysOutput, error)
}

// KeyAuditJob is the cron job deactivating expired public keys.
type KeyAuditJob struct {
	logger    *logrus.Entry
	service   KeyAuditor
	publisher eventpub.ICloudEventPublisher
}

func NewKeyAuditJob(logger *logrus.Entry, service KeyAuditor, publisher eventpub.ICloudEventPublisher) *KeyAuditJob {
	return &KeyAuditJob{
		logger:    logger,
		service:   service,
		publisher: publisher,
	}
}

func (job *KeyAuditJob) Run() {
	ctx := helpers.InitContext(auditSource)
	lFunc := helpers.ConfigureLogger(ctx, job.logger)

	start := time.Now()
	lFunc.Info("starting periodic key audit")

	out, err := job.service.AuditKeys(ctx)
	if err != nil {
		lFunc.Errorf("key audit failed: %s", err)
		return
	}

	deactivated := make([]string, 0, len(out.Deactivated))
	for _, key := range out.Deactivated {
		lFunc.Infof("key %s of %s expired at %s and was deactivated", key.Fingerprint, key.Address, key.ExpiryDate)
		deactivated = append(deactivated, key.Fingerprint)
		if job.publisher != nil {
			job.publisher.PublishCloudEvent(ctx, models.EventKeyDeactivated, "key/"+key.Address, models.NewKeyEvent(key))
		}
	}

	if job.publisher != nil {
		job.publisher.PublishCloudEvent(ctx, models.EventKeysAudited, "", models.KeysAuditedEvent{
			Audited:     out.Audited,
			Deactivated: deactivated,
		})
	}

	lFunc.Infof("ending key audit of %d keys. Took %v", out.Audited, time.Since(start))
}
