package config

// LogLevel is any logrus level name, or "none" to silence a subsystem.
type LogLevel string

const (
	Error LogLevel = "error"
	Warn  LogLevel = "warn"
	Info  LogLevel = "info"
	Debug LogLevel = "debug"
	Trace LogLevel = "trace"
	None  LogLevel = "none"
)

type Logging struct {
	Level LogLevel `mapstructure:"level"`
}
