package config

import (
	"time"
)

type Password string

func (p Password) MarshalText() ([]byte, error) {
	return []byte("*************"), nil
}

// Session is the authenticated identity the key manager acts on behalf of.
type Session struct {
	Address    string   `mapstructure:"address"`
	UID        string   `mapstructure:"uid"`
	Token      Password `mapstructure:"token"`
	APIURI     string   `mapstructure:"api_uri"`
	APIVersion string   `mapstructure:"api_version"`
}

type TLSConfig struct {
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
	// DefaultCABundle is the trust store used for hosts outside the provider domain.
	// Empty means the system roots.
	DefaultCABundle string `mapstructure:"default_ca_bundle"`
	// ProviderCACertFile pins the provider certificate for directory and provider hosted URLs.
	ProviderCACertFile string `mapstructure:"provider_ca_cert_file"`
}

type NicknymClient struct {
	LogLevel  LogLevel      `mapstructure:"log_level"`
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	TLSConfig `mapstructure:",squash"`
}

type CryptoEngine struct {
	LogLevel  LogLevel             `mapstructure:"log_level"`
	Provider  CryptoEngineProvider `mapstructure:"provider"`
	Algorithm string               `mapstructure:"algorithm"`
	KeySize   int                  `mapstructure:"key_size"`
	KeyExpiry string               `mapstructure:"key_expiry"` // validity expression such as "1y" or "90d"
}

type CryptoEngineProvider string

const (
	OpenPGPProvider CryptoEngineProvider = "openpgp"
)

type Refresher struct {
	Enabled     bool          `mapstructure:"enabled"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	Jitter      time.Duration `mapstructure:"jitter"`
}

type AuditJob struct {
	Enabled   bool   `mapstructure:"enabled"`
	Frequency string `mapstructure:"frequency"`
}

type Metrics struct {
	Enabled       bool   `mapstructure:"enabled"`
	ListenAddress string `mapstructure:"listen_address"`
}

type EventBus struct {
	LogLevel LogLevel `mapstructure:"log_level"`
	Enabled  bool     `mapstructure:"enabled"`
}
