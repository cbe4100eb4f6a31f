package sqlite

import (
	"context"
	"fmt"

	"github.com/jakehl/goid"
	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/core/pkg/engines/storage"
	"github.com/leapcode/keymanager/engines/storage/keystore"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func Register() {
	storage.RegisterStorageEngine(config.SQLite, func(logger *log.Entry, conf config.PluggableStorageEngine) (storage.StorageEngine, error) {
		return NewStorageEngine(logger, conf.SQLite)
	})
}

type SQLiteStorageEngine struct {
	Config config.SQLitePSEConfig
	logger *log.Entry
	db     *gorm.DB
	keys   storage.KeysRepo
}

func NewStorageEngine(logger *log.Entry, cfg config.SQLitePSEConfig) (storage.StorageEngine, error) {
	if !cfg.InMemory && cfg.DatabasePath == "" {
		return nil, fmt.Errorf("sqlite database path is required unless in memory")
	}

	return &SQLiteStorageEngine{
		Config: cfg,
		logger: logger,
	}, nil
}

func (s *SQLiteStorageEngine) GetProvider() config.StorageProvider {
	return config.SQLite
}

func (s *SQLiteStorageEngine) GetKeysStorage() (storage.KeysRepo, error) {
	if s.keys == nil {
		// in memory databases are private to the engine instance
		db, err := CreateSQLiteDBConnection(s.logger, s.Config, fmt.Sprintf("keys-%s", goid.NewV4UUID()))
		if err != nil {
			return nil, fmt.Errorf("could not create sqlite client: %w", err)
		}

		if err := keystore.MigrateToLatest(context.Background(), s.logger, db, keystore.DialectSQLite); err != nil {
			return nil, err
		}

		s.keys, err = keystore.NewKeysRepository(s.logger, db)
		if err != nil {
			return nil, fmt.Errorf("could not initialize sqlite keys client: %w", err)
		}
		s.db = db
	}

	return s.keys, nil
}

func (s *SQLiteStorageEngine) Close() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
