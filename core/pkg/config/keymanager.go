package config

import "time"

type KeyManagerConfig struct {
	Logs         Logging                `mapstructure:"logs"`
	Session      Session                `mapstructure:"session"`
	Nicknym      NicknymClient          `mapstructure:"nicknym"`
	Storage      PluggableStorageEngine `mapstructure:"storage"`
	CryptoEngine CryptoEngine           `mapstructure:"crypto_engine"`
	Refresher    Refresher              `mapstructure:"refresher"`
	AuditJob     AuditJob               `mapstructure:"audit_job"`
	EventBus     EventBus               `mapstructure:"event_bus"`
	Metrics      Metrics                `mapstructure:"metrics"`
	OtelConfig   OTELConfig             `mapstructure:"otel"`
	// GenerateMissingKey creates a key pair for the session address on startup when none exists.
	GenerateMissingKey bool `mapstructure:"generate_missing_key"`
}

var KeyManagerDefaults = KeyManagerConfig{
	Logs: Logging{
		Level: Info,
	},
	Session: Session{
		APIVersion: "1",
	},
	Nicknym: NicknymClient{
		Timeout: 30 * time.Second,
	},
	Storage: PluggableStorageEngine{
		Provider: SQLite,
		SQLite: SQLitePSEConfig{
			DatabasePath: "/var/lib/keymanager/keys.db",
		},
		Postgres: PostgresPSEConfig{
			Port:     5432,
			Database: "keymanager",
		},
	},
	CryptoEngine: CryptoEngine{
		Provider:  OpenPGPProvider,
		Algorithm: "rsa",
		KeySize:   4096,
		KeyExpiry: "1y",
	},
	Refresher: Refresher{
		Enabled:     true,
		MinInterval: 4 * time.Minute,
		Jitter:      2 * time.Minute,
	},
	AuditJob: AuditJob{
		Enabled:   true,
		Frequency: "@every 1h",
	},
	EventBus: EventBus{
		Enabled: true,
	},
	Metrics: Metrics{
		ListenAddress: "127.0.0.1:9099",
	},
	OtelConfig: OTELConfig{
		Traces: OTELTracesConfig{
			Hostname: "localhost",
			Port:     4318,
			Scheme:   "http",
		},
	},
}
