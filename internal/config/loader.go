// Package config resolves quipkit configuration with viper and decodes it
// into typed structs with mapstructure hooks.
package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/core/engine"
	"github.com/quipkit/quipkit/internal/export"
)

// AppName names the config directory and the binary.
const AppName = "quipkit"

// EnvPrefix is prepended to every environment override, e.g. QUIPKIT_API_TOKEN.
const EnvPrefix = "QUIPKIT"

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", engine.DefaultBaseURL)
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", "30s")

	v.SetDefault("rate_limit.auto", true)
	v.SetDefault("rate_limit.window", string(core.WindowMinute))

	v.SetDefault("retry.max_attempts", engine.DefaultRetryAttempts)
	v.SetDefault("retry.cooldown", engine.DefaultRetryCooldown.String())

	v.SetDefault("export.recheck_after", export.DefaultRecheckAfter.String())
	v.SetDefault("export.recent_window", export.DefaultRecentWindow.String())
	v.SetDefault("export.max_pages", 0)

	v.SetDefault("logging.level", "info")
}

// BindEnv enables QUIPKIT_* overrides for every key, with dots mapped to
// underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.API.BaseURL = strings.TrimSpace(cfg.API.BaseURL)
	cfg.API.Token = strings.TrimSpace(cfg.API.Token)
	cfg.RateLimit.Window = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Window))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no command can run with. A missing token is not
// an error here; commands that call the API check it.
func (c *Config) Validate() error {
	if _, ok := core.ParseWindowKind(c.RateLimit.Window); !ok {
		return fmt.Errorf("invalid rate_limit.window %q: expected minute or hour", c.RateLimit.Window)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("invalid retry.max_attempts %d: must be at least 1", c.Retry.MaxAttempts)
	}
	if c.Retry.Cooldown <= 0 {
		return fmt.Errorf("invalid retry.cooldown %s: must be positive", c.Retry.Cooldown)
	}
	if c.Export.MaxPages < 0 {
		return fmt.Errorf("invalid export.max_pages %d: must not be negative", c.Export.MaxPages)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("invalid api.timeout %s: must not be negative", c.API.Timeout)
	}
	return nil
}

// Window returns the configured window, defaulting to minute.
func (c *Config) Window() core.WindowKind {
	window, ok := core.ParseWindowKind(c.RateLimit.Window)
	if !ok {
		return core.WindowMinute
	}
	return window
}

// DefaultConfigDir returns the XDG config directory for quipkit.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultCheckpointPath places the export checkpoint beside the output.
func DefaultCheckpointPath(outDir string) string {
	return filepath.Join(outDir, ".quipkit-checkpoint.json")
}

// Template renders the defaults as a YAML config file. The token is left
// blank.
func Template() ([]byte, error) {
	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("# quipkit configuration\n")
	buf.WriteString("# Environment overrides use the QUIPKIT_ prefix, e.g. QUIPKIT_API_TOKEN.\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(templateView(cfg)); err != nil {
		return nil, fmt.Errorf("encode config template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// templateView renders durations as strings so the file reads "30s" rather
// than nanoseconds.
func templateView(cfg *Config) map[string]any {
	return map[string]any{
		"api": map[string]any{
			"base_url": cfg.API.BaseURL,
			"token":    cfg.API.Token,
			"timeout":  cfg.API.Timeout.String(),
		},
		"rate_limit": map[string]any{
			"auto":   cfg.RateLimit.Auto,
			"window": cfg.RateLimit.Window,
		},
		"retry": map[string]any{
			"max_attempts": cfg.Retry.MaxAttempts,
			"cooldown":     cfg.Retry.Cooldown.String(),
		},
		"export": map[string]any{
			"recheck_after": cfg.Export.RecheckAfter.String(),
			"recent_window": cfg.Export.RecentWindow.String(),
			"max_pages":     cfg.Export.MaxPages,
		},
		"logging": map[string]any{
			"level": cfg.Logging.Level,
		},
	}
}
