package postgres

import (
	"fmt"

	"github.com/leapcode/keymanager/core/pkg/config"
	"github.com/leapcode/keymanager/engines/storage/keystore"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func BuildDSN(cfg config.PostgresPSEConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s", cfg.Hostname, cfg.Username, cfg.Password, cfg.Database, cfg.Port, sslMode)
}

func CreatePostgresDBConnection(logger *logrus.Entry, cfg config.PostgresPSEConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(BuildDSN(cfg)), &gorm.Config{
		Logger: keystore.NewGormLogger(logger),
	})
}
