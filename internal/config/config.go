package config

import (
	"time"
)

// Config is the resolved application configuration. Values come from, in
// increasing precedence: built-in defaults, the config file, QUIPKIT_*
// environment variables and command line flags.
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`
	Export    ExportConfig    `mapstructure:"export" yaml:"export"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// APIConfig locates the service and authenticates against it.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Token   string        `mapstructure:"token" yaml:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RateLimitConfig controls the pre-request wait.
type RateLimitConfig struct {
	// Auto enables waiting before each request when quota is low.
	Auto bool `mapstructure:"auto" yaml:"auto"`

	// Window names the quota window observed headers are attributed to.
	// Valid values: minute, hour
	Window string `mapstructure:"window" yaml:"window"`
}

// RetryConfig controls the fixed-cooldown retry loop used by export.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Cooldown    time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// ExportConfig controls folder tree exports.
type ExportConfig struct {
	RecheckAfter time.Duration `mapstructure:"recheck_after" yaml:"recheck_after"`
	RecentWindow time.Duration `mapstructure:"recent_window" yaml:"recent_window"`

	// MaxPages bounds HTML pagination per document; zero is unbounded.
	MaxPages int `mapstructure:"max_pages" yaml:"max_pages"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level" yaml:"level"`
}
