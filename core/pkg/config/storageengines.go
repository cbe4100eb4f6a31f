package config

type PluggableStorageEngine struct {
	LogLevel LogLevel `mapstructure:"log_level"`

	Provider StorageProvider `mapstructure:"provider"`

	Postgres PostgresPSEConfig `mapstructure:"postgres"`
	SQLite   SQLitePSEConfig   `mapstructure:"sqlite"`
}

type SQLitePSEConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	InMemory     bool   `mapstructure:"in_memory"`
}

type PostgresPSEConfig struct {
	Hostname string   `mapstructure:"hostname"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password Password `mapstructure:"password"`
	Database string   `mapstructure:"database"`
	SSLMode  string   `mapstructure:"ssl_mode"`
}

type StorageProvider string

const (
	Postgres StorageProvider = "postgres"
	SQLite   StorageProvider = "sqlite"
)
