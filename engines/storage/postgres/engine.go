package postgres

import (
	"context"
	"fmt"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/engines/storage"
	"github.com/leapcode/keymanager/engines/storage/keystore"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func Register() {
	storage.RegisterStorageEngine(config.Postgres, func(logger *log.Entry, conf config.PluggableStorageEngine) (storage.StorageEngine, error) {
		return NewStorageEngine(logger, conf.Postgres)
	})
}

type PostgresStorageEngine struct {
	Config config.PostgresPSEConfig
	logger *log.Entry
	db     *gorm.DB
	keys   storage.KeysRepo
}

func NewStorageEngine(logger *log.Entry, cfg config.PostgresPSEConfig) (storage.StorageEngine, error) {
	if cfg.Hostname == "" || cfg.Database == "" {
		return nil, fmt.Errorf("postgres hostname and database are required")
	}

	return &PostgresStorageEngine{
		Config: cfg,
		logger: logger,
	}, nil
}

func (s *PostgresStorageEngine) GetProvider() config.StorageProvider {
	return config.Postgres
}

func (s *PostgresStorageEngine) GetKeysStorage() (storage.KeysRepo, error) {
	if s.keys == nil {
		db, err := CreatePostgresDBConnection(s.logger, s.Config)
		if err != nil {
			return nil, fmt.Errorf("could not create postgres client: %w", err)
		}

		if err := keystore.MigrateToLatest(context.Background(), s.logger, db, keystore.DialectPostgres); err != nil {
			return nil, err
		}

		s.keys, err = keystore.NewKeysRepository(s.logger, db)
		if err != nil {
			return nil, fmt.Errorf("could not initialize postgres keys client: %w", err)
		}
		s.db = db
	}

	return s.keys, nil
}

func (s *PostgresStorageEngine) Close() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
