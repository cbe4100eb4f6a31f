package keystore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed migrations/**
var embedMigrations embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var gooseDialects = map[Dialect]goose.Dialect{
	DialectSQLite:   goose.DialectSQLite3,
	DialectPostgres: goose.DialectPostgres,
}

// MigrateToLatest applies every pending migration of the dialect.
func MigrateToLatest(ctx context.Context, logger *logrus.Entry, db *gorm.DB, dialect Dialect) error {
	lMig := logger.WithField("migrations", string(dialect))

	gooseDialect, ok := gooseDialects[dialect]
	if !ok {
		return fmt.Errorf("unsupported migration dialect %s", dialect)
	}

	migrationsFS, err := fs.Sub(embedMigrations, "migrations/"+string(dialect))
	if err != nil {
		return fmt.Errorf("could not obtain migrations subdirectory: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("could not get db connection: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, sqlDB, migrationsFS)
	if err != nil {
		return fmt.Errorf("could not create migrator: %w", err)
	}

	current, target, err := provider.GetVersions(ctx)
	if err != nil {
		return fmt.Errorf("could not get db version: %w", err)
	}

	lMig.Infof("current version: %d, target version: %d", current, target)

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("could not migrate db: %w", err)
	}

	lMig.Infof("migrated %d steps", len(results))
	return nil
}
