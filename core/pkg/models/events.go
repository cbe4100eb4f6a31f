package models

type EventType string

const (
	EventKeyFound       EventType = "keymanager.key.found"
	EventKeyNotFound    EventType = "keymanager.key.not-found"
	EventKeyImported    EventType = "keymanager.key.imported"
	EventKeyFetched     EventType = "keymanager.key.fetched"
	EventKeySent        EventType = "keymanager.key.sent"
	EventKeyGenerated   EventType = "keymanager.key.generated"
	EventKeyRegenerated EventType = "keymanager.key.regenerated"
	EventKeyExtended    EventType = "keymanager.key.extended"

	EventKeyRefreshed               EventType = "keymanager.key.refreshed"
	EventKeyDeactivated             EventType = "keymanager.key.deactivated"
	EventRefreshFingerprintMismatch EventType = "keymanager.refresh.fingerprint-mismatch"
	EventKeysAudited                EventType = "keymanager.keys.audited"
)

type FingerprintMismatchEvent struct {
	Address   string `json:"address"`
	Requested string `json:"requested_fingerprint"`
	Received  string `json:"received_fingerprint"`
}

type KeyEvent struct {
	Address     string `json:"address"`
	Fingerprint string `json:"fingerprint"`
	Private     bool   `json:"private"`
}

func NewKeyEvent(k *Key) KeyEvent {
	return KeyEvent{Address: k.Address, Fingerprint: k.Fingerprint, Private: k.Private}
}

type KeysAuditedEvent struct {
	Audited     int      `json:"audited"`
	Deactivated []string `json:"deactivated_fingerprints"`
}
