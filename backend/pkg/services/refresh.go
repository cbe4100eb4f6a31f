package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/leapcode/keymanager/core/pkg/errs"
	"github.com/leapcode/keymanager/core/pkg/helpers"
	"github.com/leapcode/keymanager/core/pkg/models"
)

type FingerprintMismatchError struct {
	Address   string
	Requested string
	Received  string
}

func (e *FingerprintMismatchError) Error() string {
	return fmt.Sprintf("fingerprints are not equal for %s: requested %s, received %s", e.Address, e.Requested, e.Received)
}

func (e *FingerprintMismatchError) Unwrap() error {
	return errs.ErrFingerprintMismatch
}

type RefreshKeyInput struct {
	Fingerprint string `validate:"required,hexadecimal"`
	Address     string `validate:"required,email"`
}

type RefreshKeyOutput struct {
	Key *models.Key
	// Deactivated is set when the refreshed key turned out to be expired.
	Deactivated bool
}

// RefreshKey re-fetches a stored public key from the directory by fingerprint and merges
// the material into the existing record. Usage flags, trust level and activity survive
// the merge. Mismatching material is never stored.
func (svc *KeyManagerBackend) RefreshKey(ctx context.Context, input RefreshKeyInput) (*RefreshKeyOutput, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	if err := kmValidator.Struct(input); err != nil {
		lFunc.Errorf("RefreshKeyInput struct validation error: %s", err)
		return nil, errs.ErrValidateBadRequest
	}

	pair, err := svc.fetchByFingerprint(ctx, input.Fingerprint, input.Address)
	if err != nil {
		return nil, err
	}

	unlock := svc.locks.Lock(input.Address, false)
	defer unlock()

	exists, stored, err := svc.keyStorage.SelectExists(ctx, models.RecordID(input.Fingerprint, input.Address, false))
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, fmt.Errorf("%w: no stored key %s for %s", errs.ErrKeyNotFound, strings.ToUpper(input.Fingerprint), input.Address)
	}

	now := svc.now()
	merged := *stored
	merged.KeyData = pair.Public.KeyData
	merged.UIDs = pair.Public.UIDs
	merged.Length = pair.Public.Length
	merged.ExpiryDate = pair.Public.ExpiryDate
	merged.RefreshedAt = &now
	for _, sig := range pair.Public.Signatures {
		if !merged.HasSignature(sig) {
			merged.Signatures = append(merged.Signatures, sig)
		}
	}

	output := &RefreshKeyOutput{Key: &merged}
	if merged.IsExpired(now) && !merged.IsDeactivated() {
		lFunc.Infof("key %s of %s expired, deactivating it", merged.Fingerprint, merged.Address)
		merged.DeactivatedAt = &now
		output.Deactivated = true
	}

	if _, err := svc.keyStorage.Update(ctx, &merged); err != nil {
		lFunc.Errorf("could not store refreshed key %s: %s", merged.Fingerprint, err)
		return nil, err
	}

	return output, nil
}

type AuditKeysOutput struct {
	Audited     int
	Deactivated []*models.Key
}

// AuditKeys stamps every public record and deactivates the expired ones. Private records
// are left alone so an expired own key can still be extended or rotated.
func (svc *KeyManagerBackend) AuditKeys(ctx context.Context) (*AuditKeysOutput, error) {
	lFunc := helpers.ConfigureLogger(ctx, svc.logger)

	keys, err := svc.keyStorage.SelectAll(ctx, false)
	if err != nil {
		lFunc.Errorf("could not read public keys: %s", err)
		return nil, err
	}

	output := &AuditKeysOutput{Deactivated: []*models.Key{}}
	for _, key := range keys {
		updated, deactivated, err := svc.auditKey(ctx, key)
		if err != nil {
			lFunc.Errorf("could not audit key %s of %s: %s", key.Fingerprint, key.Address, err)
			return nil, err
		}

		output.Audited++
		if deactivated {
			output.Deactivated = append(output.Deactivated, updated)
		}
	}

	lFunc.Debugf("audited %d public keys, deactivated %d", output.Audited, len(output.Deactivated))
	return output, nil
}

func (svc *KeyManagerBackend) auditKey(ctx context.Context, key *models.Key) (*models.Key, bool, error) {
	unlock := svc.locks.Lock(key.Address, false)
	defer unlock()

	exists, stored, err := svc.keyStorage.SelectExists(ctx, key.RecordID())
	if err != nil || !exists {
		return nil, false, err
	}

	now := svc.now()
	stored.LastAuditedAt = &now

	deactivated := false
	if !stored.IsDeactivated() && stored.IsExpired(now) {
		stored.DeactivatedAt = &now
		deactivated = true
	}

	updated, err := svc.keyStorage.Update(ctx, stored)
	return updated, deactivated, err
}
