package keystore

import (
	"context"
	"strings"

	"github.com/leapcode/keymanager/core/pkg/engines/storage"
	"github.com/leapcode/keymanager/core/pkg/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const keysTableName = "keys"

type KeysStore struct {
	db      *gorm.DB
	querier *gormDBQuerier[models.Key]
	logger  *logrus.Entry
}

// NewKeysRepository expects the schema to be migrated already. See MigrateToLatest.
func NewKeysRepository(logger *logrus.Entry, db *gorm.DB) (storage.KeysRepo, error) {
	return &KeysStore{
		db:      db,
		querier: newGormDBQuerier[models.Key](db, keysTableName, "id"),
		logger:  logger,
	}, nil
}

func pairParams(address string, private bool) []gormWhereParams {
	return []gormWhereParams{
		{query: "address = ?", extraArgs: []any{strings.ToLower(address)}},
		{query: "private = ?", extraArgs: []any{private}},
	}
}

func (db *KeysStore) SelectExists(ctx context.Context, id string) (bool, *models.Key, error) {
	return db.querier.SelectExists(ctx, id, nil)
}

func (db *KeysStore) SelectCurrent(ctx context.Context, address string, private bool) (bool, *models.Key, error) {
	where := append(pairParams(address, private), gormWhereParams{query: "deactivated_at IS NULL"})
	return db.querier.selectFirst(ctx, where)
}

func (db *KeysStore) SelectByAddress(ctx context.Context, address string, private bool) ([]*models.Key, error) {
	return db.querier.SelectAll(ctx, pairParams(address, private), "")
}

func (db *KeysStore) SelectAll(ctx context.Context, private bool) ([]*models.Key, error) {
	return db.querier.SelectAll(ctx, []gormWhereParams{
		{query: "private = ?", extraArgs: []any{private}},
	}, "address")
}

func (db *KeysStore) SelectInactive(ctx context.Context, private bool) ([]*models.Key, error) {
	return db.querier.SelectAll(ctx, []gormWhereParams{
		{query: "private = ?", extraArgs: []any{private}},
		{query: "deactivated_at IS NOT NULL"},
	}, "deactivated_at DESC")
}

func (db *KeysStore) Insert(ctx context.Context, key *models.Key) (*models.Key, error) {
	normalize(key)
	return db.querier.Insert(ctx, key)
}

func (db *KeysStore) Update(ctx context.Context, key *models.Key) (*models.Key, error) {
	normalize(key)
	return db.querier.Update(ctx, key, key.ID)
}

// Supersede saves the superseded records and then upserts current, in a single transaction.
// Deactivating the superseded records first keeps one current record per pair at all times.
func (db *KeysStore) Supersede(ctx context.Context, current *models.Key, superseded []*models.Key) (*models.Key, error) {
	normalize(current)
	err := db.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, old := range superseded {
			normalize(old)
			if _, err := update(tx.Table(keysTableName), "id", old, old.ID); err != nil {
				return err
			}
		}

		var count int64
		if err := tx.Table(keysTableName).Where("id = ?", current.ID).Count(&count).Error; err != nil {
			return err
		}

		var err error
		if count == 0 {
			_, err = insert(tx.Table(keysTableName), current)
		} else {
			_, err = update(tx.Table(keysTableName), "id", current, current.ID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return current, nil
}

func normalize(key *models.Key) {
	key.Address = strings.ToLower(key.Address)
	key.Fingerprint = strings.ToUpper(key.Fingerprint)
	key.ID = key.RecordID()
	if key.UIDs == nil {
		key.UIDs = []string{}
	}
	if key.Signatures == nil {
		key.Signatures = []string{}
	}
}
