package config

type OTELConfig struct {
	Traces OTELTracesConfig `mapstructure:"traces"`
}

// OTELTracesConfig points at an OTLP/HTTP collector.
type OTELTracesConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Hostname string `mapstructure:"hostname"`
	Port     int    `mapstructure:"port"`
	Scheme   string `mapstructure:"scheme"`
}
