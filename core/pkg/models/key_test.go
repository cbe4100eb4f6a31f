package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordID(t *testing.T) {
	k := Key{Fingerprint: "e36e738d69173c13d709e44f2f455e2824d18ddf", Address: "Alice@Example.org", Private: true}
	assert.Equal(t, "E36E738D69173C13D709E44F2F455E2824D18DDF:alice@example.org:private", k.RecordID())

	k.Private = false
	assert.Equal(t, "E36E738D69173C13D709E44F2F455E2824D18DDF:alice@example.org:public", k.RecordID())
}

func TestKeyID(t *testing.T) {
	k := Key{Fingerprint: "E36E738D69173C13D709E44F2F455E2824D18DDF"}
	assert.Equal(t, "2F455E2824D18DDF", k.KeyID())
	assert.Equal(t, "ABCD", KeyIDFromFingerprint("abcd"))
}

func TestIsActive(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name     string
		key      Key
		expected bool
	}{
		{name: "no expiry", key: Key{}, expected: true},
		{name: "future expiry", key: Key{ExpiryDate: &future}, expected: true},
		{name: "expired", key: Key{ExpiryDate: &past}, expected: false},
		{name: "deactivated", key: Key{DeactivatedAt: &past, ExpiryDate: &future}, expected: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.key.IsActiveAt(now))
		})
	}
}

func TestHasUIDAndSignature(t *testing.T) {
	k := Key{UIDs: []string{"alice@example.org", "alice@example.net"}, Signatures: []string{"2F455E2824D18DDF"}}
	assert.True(t, k.HasUID("ALICE@example.org"))
	assert.False(t, k.HasUID("carol@example.org"))
	assert.True(t, k.HasSignature("2f455e2824d18ddf"))
	assert.False(t, k.HasSignature("0000000000000000"))
}

func TestValidationLevel(t *testing.T) {
	assert.True(t, WeakChain < ProviderTrust)
	assert.Equal(t, ProviderTrust, ParseValidationLevel("Provider_Trust"))
	assert.Equal(t, WeakChain, ParseValidationLevel("Weak_Chain"))
	assert.Equal(t, WeakChain, ParseValidationLevel("Fingerprint"))
	assert.Equal(t, WeakChain, ParseValidationLevel(""))

	var v ValidationLevel
	assert.NoError(t, v.Scan([]byte("Provider_Trust")))
	assert.Equal(t, ProviderTrust, v)
	assert.NoError(t, v.Scan(nil))
	assert.Equal(t, WeakChain, v)
	assert.Error(t, v.Scan(3.5))

	dbValue, err := ProviderTrust.Value()
	assert.NoError(t, err)
	assert.Equal(t, "Provider_Trust", dbValue)
}

func TestKeyJSON(t *testing.T) {
	k := Key{Fingerprint: "ABCD", Address: "bob@example.org", Validation: ProviderTrust}
	raw, err := json.Marshal(k)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"validation":"Provider_Trust"`)
	assert.Contains(t, string(raw), `"expiry_date":null`)

	var decoded Key
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, ProviderTrust, decoded.Validation)
}

func TestVerificationResult(t *testing.T) {
	var result VerificationResult = VerifiedKey{Key: &Key{Fingerprint: "ABCD"}}
	assert.True(t, result.Valid())

	result = InvalidSignature{Address: "bob@example.org"}
	assert.False(t, result.Valid())
	assert.Equal(t, "invalid signature for bob@example.org", result.(InvalidSignature).String())
}
