package models

import (
	"fmt"
	"strings"
	"time"
)

// Key is one OpenPGP key record bound to a single address.
type Key struct {
	// ID is derived from fingerprint, address and kind. See RecordID.
	ID            string          `json:"-" gorm:"column:id;primaryKey"`
	Fingerprint   string          `json:"fingerprint" gorm:"column:fingerprint"`
	KeyData       string          `json:"key_data" gorm:"column:key_data"`
	UIDs          []string        `json:"uids" gorm:"column:uids;serializer:json"`
	Address       string          `json:"address" gorm:"column:address"`
	Private       bool            `json:"private" gorm:"column:private"`
	Length        int             `json:"length" gorm:"column:length"`
	ExpiryDate    *time.Time      `json:"expiry_date" gorm:"column:expiry_date"`
	RefreshedAt   *time.Time      `json:"refreshed_at" gorm:"column:refreshed_at"`
	LastAuditedAt *time.Time      `json:"last_audited_at" gorm:"column:last_audited_at"`
	Validation    ValidationLevel `json:"validation" gorm:"column:validation"`
	EncrUsed      bool            `json:"encr_used" gorm:"column:encr_used"`
	SignUsed      bool            `json:"sign_used" gorm:"column:sign_used"`
	Signatures    []string        `json:"signatures" gorm:"column:signatures;serializer:json"`
	DeactivatedAt *time.Time      `json:"deactivated_at" gorm:"column:deactivated_at"`
}

func (Key) TableName() string {
	return "keys"
}

func RecordID(fingerprint, address string, private bool) string {
	return fmt.Sprintf("%s:%s:%s", strings.ToUpper(fingerprint), strings.ToLower(address), KeyKind(private))
}

func KeyKind(private bool) string {
	if private {
		return "private"
	}
	return "public"
}

func (k *Key) RecordID() string {
	return RecordID(k.Fingerprint, k.Address, k.Private)
}

// KeyID returns the trailing 16 hex chars of the fingerprint.
func (k *Key) KeyID() string {
	return KeyIDFromFingerprint(k.Fingerprint)
}

func KeyIDFromFingerprint(fingerprint string) string {
	fp := strings.ToUpper(fingerprint)
	if len(fp) <= 16 {
		return fp
	}
	return fp[len(fp)-16:]
}

func (k *Key) IsDeactivated() bool {
	return k.DeactivatedAt != nil
}

func (k *Key) IsExpired(now time.Time) bool {
	return k.ExpiryDate != nil && !k.ExpiryDate.After(now)
}

// IsActive reports whether the record is neither deactivated nor expired.
func (k *Key) IsActive() bool {
	return k.IsActiveAt(time.Now())
}

func (k *Key) IsActiveAt(now time.Time) bool {
	return !k.IsDeactivated() && !k.IsExpired(now)
}

func (k *Key) HasUID(address string) bool {
	for _, uid := range k.UIDs {
		if strings.EqualFold(uid, address) {
			return true
		}
	}
	return false
}

func (k *Key) HasSignature(keyID string) bool {
	for _, sig := range k.Signatures {
		if strings.EqualFold(sig, keyID) {
			return true
		}
	}
	return false
}

// KeyPair groups the public and private records produced by generation or parsing.
type KeyPair struct {
	Public  *Key
	Private *Key
}
