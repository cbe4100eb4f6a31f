package keystore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type gormWhereParams struct {
	query     string
	extraArgs []any
}

type gormDBQuerier[E any] struct {
	*gorm.DB
	tableName        string
	primaryKeyColumn string
}

func newGormDBQuerier[E any](db *gorm.DB, tableName string, primaryKeyColumn string) *gormDBQuerier[E] {
	return &gormDBQuerier[E]{
		DB:               db,
		tableName:        tableName,
		primaryKeyColumn: primaryKeyColumn,
	}
}

func (db *gormDBQuerier[E]) SelectAll(ctx context.Context, where []gormWhereParams, order string) ([]*E, error) {
	var elems []*E
	tx := db.Table(db.tableName).WithContext(ctx)
	for _, w := range where {
		tx = tx.Where(w.query, w.extraArgs...)
	}

	if order != "" {
		tx = tx.Order(order)
	}

	if err := tx.Find(&elems).Error; err != nil {
		return nil, err
	}

	return elems, nil
}

// SelectExists returns the first element matching queryID. A nil or empty queryCol
// means the primary key column.
func (db *gormDBQuerier[E]) SelectExists(ctx context.Context, queryID string, queryCol *string) (bool, *E, error) {
	searchCol := db.primaryKeyColumn
	if queryCol != nil && *queryCol != "" {
		searchCol = *queryCol
	}

	return db.selectFirst(ctx, []gormWhereParams{{query: fmt.Sprintf("%s = ?", searchCol), extraArgs: []any{queryID}}})
}

func (db *gormDBQuerier[E]) selectFirst(ctx context.Context, where []gormWhereParams) (bool, *E, error) {
	var elem E
	tx := db.Table(db.tableName).WithContext(ctx)
	for _, w := range where {
		tx = tx.Where(w.query, w.extraArgs...)
	}

	tx = tx.Limit(1).Find(&elem)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	if tx.RowsAffected == 0 {
		return false, nil, nil
	}

	return true, &elem, nil
}

func (db *gormDBQuerier[E]) Insert(ctx context.Context, elem *E) (*E, error) {
	return insert(db.Table(db.tableName).WithContext(ctx), elem)
}

func (db *gormDBQuerier[E]) Update(ctx context.Context, elem *E, elemID string) (*E, error) {
	return update(db.Table(db.tableName).WithContext(ctx), db.primaryKeyColumn, elem, elemID)
}

func insert[E any](tx *gorm.DB, elem *E) (*E, error) {
	if err := tx.Create(elem).Error; err != nil {
		return nil, err
	}

	return elem, nil
}

func update[E any](tx *gorm.DB, primaryKeyColumn string, elem *E, elemID string) (*E, error) {
	tx = tx.Where(fmt.Sprintf("%s = ?", primaryKeyColumn), elemID).Save(elem)
	if err := tx.Error; err != nil {
		return nil, err
	}

	if tx.RowsAffected != 1 {
		return nil, gorm.ErrRecordNotFound
	}

	return elem, nil
}
