package storage

import (
	"context"

	"github.com/leapcode/keymanager/core/pkg/models"
)

// KeysRepo persists key records. Records are never deleted.
type KeysRepo interface {
	SelectExists(ctx context.Context, id string) (bool, *models.Key, error)
	// SelectCurrent returns the record of the pair that has not been deactivated, expired or not.
	SelectCurrent(ctx context.Context, address string, private bool) (bool, *models.Key, error)
	// SelectByAddress returns every record of the pair.
	SelectByAddress(ctx context.Context, address string, private bool) ([]*models.Key, error)
	SelectAll(ctx context.Context, private bool) ([]*models.Key, error)
	// SelectInactive returns deactivated records of the given kind, most recently deactivated first.
	SelectInactive(ctx context.Context, private bool) ([]*models.Key, error)

	Insert(ctx context.Context, key *models.Key) (*models.Key, error)
	Update(ctx context.Context, key *models.Key) (*models.Key, error)
	// Supersede saves the superseded records, then inserts or updates current, atomically.
	Supersede(ctx context.Context, current *models.Key, superseded []*models.Key) (*models.Key, error)
}
