package sqlite

import (
	"fmt"
	"net/url"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/engines/storage/keystore"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// pragmas are passed in the DSN so every pooled connection gets them.
var pragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
}

func BuildDSN(cfg config.SQLitePSEConfig, name string) string {
	params := url.Values{}
	for _, p := range pragmas {
		params.Add("_pragma", p)
	}

	if cfg.InMemory {
		params.Set("mode", "memory")
		params.Set("cache", "shared")
		return fmt.Sprintf("file:%s?%s", name, params.Encode())
	}

	params.Add("_pragma", "journal_mode(WAL)")
	return fmt.Sprintf("file:%s?%s", cfg.DatabasePath, params.Encode())
}

func CreateSQLiteDBConnection(logger *logrus.Entry, cfg config.SQLitePSEConfig, name string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(BuildDSN(cfg, name)), &gorm.Config{
		Logger: keystore.NewGormLogger(logger),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// single writer. An in memory database lives as long as its connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if !cfg.InMemory {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}
