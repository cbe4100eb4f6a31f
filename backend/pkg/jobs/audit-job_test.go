package jobs

import (
	"errors"
	"testing"
	"time"

	lservices "github.com/leapcode/keymanager/backend/pkg/services"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestKeyAuditJobRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := new(mockKeyService)
	pub := new(mockPublisher)
	pub.On("PublishCloudEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	expiry := time.Now().Add(-time.Hour)
	expired := &models.Key{Fingerprint: bobFingerprint, Address: "bob@example.org", ExpiryDate: &expiry, DeactivatedAt: &expiry}
	svc.On("AuditKeys", mock.Anything).Return(&lservices.AuditKeysOutput{Audited: 3, Deactivated: []*models.Key{expired}}, nil)

	NewKeyAuditJob(logrus.NewEntry(logger), svc, pub).Run()

	pub.AssertCalled(t, "PublishCloudEvent", mock.Anything, models.EventKeyDeactivated, "key/bob@example.org", models.NewKeyEvent(expired))
	pub.AssertCalled(t, "PublishCloudEvent", mock.Anything, models.EventKeysAudited, "", models.KeysAuditedEvent{
		Audited:     3,
		Deactivated: []string{bobFingerprint},
	})
}

func TestKeyAuditJobRunError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := new(mockKeyService)
	pub := new(mockPublisher)

	svc.On("AuditKeys", mock.Anything).Return((*lservices.AuditKeysOutput)(nil), errors.New("database is locked"))

	NewKeyAuditJob(logrus.NewEntry(logger), svc, pub).Run()

	pub.AssertNotCalled(t, "PublishCloudEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "key audit failed: database is locked", hook.LastEntry().Message)
}

func TestKeyAuditJobWithoutPublisher(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := new(mockKeyService)
	svc.On("AuditKeys", mock.Anything).Return(&lservices.AuditKeysOutput{Audited: 0, Deactivated: []*models.Key{}}, nil)

	assert.NotPanics(t, NewKeyAuditJob(logrus.NewEntry(logger), svc, nil).Run)
}
