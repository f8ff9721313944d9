package corecfg

import "time"

// Config is recognized at core construction (spec.md section 6).
type Config struct {
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout" yaml:"confirmation_timeout"`
	HoldDuration        time.Duration `mapstructure:"hold_duration" yaml:"hold_duration"`
	CacheCapacity       int           `mapstructure:"cache_capacity" yaml:"cache_capacity"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CommandTimeout      time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`

	// Ambient fields outside spec.md's core table, recognized by
	// internal/config and cmd/accessd only; the core packages never read
	// these directly.
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	ReaderIndex   int    `mapstructure:"reader_index" yaml:"reader_index"`
	CloudEndpoint string `mapstructure:"cloud_endpoint" yaml:"cloud_endpoint"`
	SecretsPath   string `mapstructure:"secrets_path" yaml:"secrets_path"`
}

// DefaultConfig returns the spec.md section 6 defaults.
func DefaultConfig() Config {
	return Config{
		ConfirmationTimeout: 15 * time.Second,
		HoldDuration:        5 * time.Second,
		CacheCapacity:       8,
		CacheTTL:            4 * time.Hour,
		CommandTimeout:      500 * time.Millisecond,
		LogFormat:           "text",
		LogLevel:            "info",
	}
}
