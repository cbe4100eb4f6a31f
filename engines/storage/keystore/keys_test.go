package keystore_test

import (
	"context"
	"testing"
	"time"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/engines/storage"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/leapcode/keymanager/engines/storage/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) storage.KeysRepo {
	t.Helper()

	engine, err := sqlite.NewStorageEngine(logrus.NewEntry(logrus.New()), config.SQLitePSEConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	repo, err := engine.GetKeysStorage()
	require.NoError(t, err)
	return repo
}

func testKey(fp, address string, private bool) *models.Key {
	expiry := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	return &models.Key{
		Fingerprint: fp,
		KeyData:     "-----BEGIN PGP PUBLIC KEY BLOCK-----",
		UIDs:        []string{address},
		Address:     address,
		Private:     private,
		Length:      4096,
		ExpiryDate:  &expiry,
		Validation:  models.ProviderTrust,
		Signatures:  []string{"2F455E2824D18DDF"},
	}
}

func TestInsertAndSelect(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	key := testKey("e36e738d69173c13d709e44f2f455e2824d18ddf", "Alice@Example.org", false)
	_, err := repo.Insert(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "E36E738D69173C13D709E44F2F455E2824D18DDF:alice@example.org:public", key.ID)

	exists, stored, err := repo.SelectExists(ctx, key.ID)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "E36E738D69173C13D709E44F2F455E2824D18DDF", stored.Fingerprint)
	assert.Equal(t, []string{"Alice@Example.org"}, stored.UIDs)
	assert.Equal(t, models.ProviderTrust, stored.Validation)
	assert.Equal(t, []string{"2F455E2824D18DDF"}, stored.Signatures)
	assert.Nil(t, stored.DeactivatedAt)
	require.NotNil(t, stored.ExpiryDate)
	assert.True(t, key.ExpiryDate.Equal(*stored.ExpiryDate))

	exists, current, err := repo.SelectCurrent(ctx, "alice@example.org", false)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, key.ID, current.ID)

	exists, _, err = repo.SelectCurrent(ctx, "alice@example.org", true)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSelectExistsMissing(t *testing.T) {
	repo := newTestRepo(t)

	exists, key, err := repo.SelectExists(context.Background(), "nope")
	assert.NoError(t, err)
	assert.False(t, exists)
	assert.Nil(t, key)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	key := testKey("AAAA000000000000000000000000000000000001", "bob@example.org", false)
	_, err := repo.Insert(ctx, key)
	require.NoError(t, err)

	key.SignUsed = true
	key.EncrUsed = true
	_, err = repo.Update(ctx, key)
	require.NoError(t, err)

	_, stored, err := repo.SelectExists(ctx, key.ID)
	require.NoError(t, err)
	assert.True(t, stored.SignUsed)
	assert.True(t, stored.EncrUsed)
}

func TestOnlyOneCurrentRecordPerPair(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Insert(ctx, testKey("AAAA000000000000000000000000000000000001", "bob@example.org", false))
	require.NoError(t, err)

	_, err = repo.Insert(ctx, testKey("AAAA000000000000000000000000000000000002", "bob@example.org", false))
	assert.Error(t, err)
}

func TestSupersede(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	old := testKey("AAAA000000000000000000000000000000000001", "bob@example.org", true)
	_, err := repo.Insert(ctx, old)
	require.NoError(t, err)

	now := time.Now().UTC()
	old.DeactivatedAt = &now
	next := testKey("AAAA000000000000000000000000000000000002", "bob@example.org", true)
	_, err = repo.Supersede(ctx, next, []*models.Key{old})
	require.NoError(t, err)

	exists, current, err := repo.SelectCurrent(ctx, "bob@example.org", true)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, next.ID, current.ID)

	all, err := repo.SelectByAddress(ctx, "bob@example.org", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inactive, err := repo.SelectInactive(ctx, true)
	require.NoError(t, err)
	require.Len(t, inactive, 1)
	assert.Equal(t, old.ID, inactive[0].ID)

	// superseding with an existing record updates it in place
	next.SignUsed = true
	_, err = repo.Supersede(ctx, next, nil)
	require.NoError(t, err)

	_, stored, err := repo.SelectExists(ctx, next.ID)
	require.NoError(t, err)
	assert.True(t, stored.SignUsed)
}

func TestSupersedeRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	old := testKey("AAAA000000000000000000000000000000000001", "bob@example.org", false)
	_, err := repo.Insert(ctx, old)
	require.NoError(t, err)

	now := time.Now().UTC()
	old.DeactivatedAt = &now
	_, err = repo.Insert(ctx, testKey("AAAA000000000000000000000000000000000009", "carol@example.org", false))
	require.NoError(t, err)

	// second current record for carol violates the unique index, so old must stay active
	conflicting := testKey("AAAA000000000000000000000000000000000004", "carol@example.org", false)
	_, err = repo.Supersede(ctx, conflicting, []*models.Key{old})
	assert.Error(t, err)

	exists, current, err := repo.SelectCurrent(ctx, "bob@example.org", false)
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, old.ID, current.ID)
	assert.Nil(t, current.DeactivatedAt)
}

func TestSelectAllByKind(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, k := range []*models.Key{
		testKey("AAAA000000000000000000000000000000000001", "alice@example.org", false),
		testKey("AAAA000000000000000000000000000000000001", "alice@example.org", true),
		testKey("AAAA000000000000000000000000000000000002", "bob@example.org", false),
	} {
		_, err := repo.Insert(ctx, k)
		require.NoError(t, err)
	}

	public, err := repo.SelectAll(ctx, false)
	require.NoError(t, err)
	assert.Len(t, public, 2)
	assert.Equal(t, "alice@example.org", public[0].Address)

	private, err := repo.SelectAll(ctx, true)
	require.NoError(t, err)
	assert.Len(t, private, 1)
}
