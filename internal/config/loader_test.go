package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/quipkit/quipkit/internal/core"
	"github.com/quipkit/quipkit/internal/core/engine"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(newViper(t))
		require.NoError(t, err)

		assert.Equal(t, engine.DefaultBaseURL, cfg.API.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.API.Timeout)
		assert.True(t, cfg.RateLimit.Auto)
		assert.Equal(t, core.WindowMinute, cfg.Window())
		assert.Equal(t, engine.DefaultRetryAttempts, cfg.Retry.MaxAttempts)
		assert.Equal(t, engine.DefaultRetryCooldown, cfg.Retry.Cooldown)
		assert.Equal(t, 24*time.Hour, cfg.Export.RecheckAfter)
		assert.Equal(t, 7*24*time.Hour, cfg.Export.RecentWindow)
		assert.Equal(t, "info", cfg.Logging.Level)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
api:
  token: file-token
  timeout: 5s
rate_limit:
  auto: false
  window: Hour
retry:
  max_attempts: 3
  cooldown: 2s
export:
  max_pages: 10
`), 0o600))

		v := newViper(t)
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, "file-token", cfg.API.Token)
		assert.Equal(t, 5*time.Second, cfg.API.Timeout)
		assert.False(t, cfg.RateLimit.Auto)
		assert.Equal(t, core.WindowHour, cfg.Window())
		assert.Equal(t, 3, cfg.Retry.MaxAttempts)
		assert.Equal(t, 2*time.Second, cfg.Retry.Cooldown)
		assert.Equal(t, 10, cfg.Export.MaxPages)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("QUIPKIT_API_TOKEN", " env-token ")
		t.Setenv("QUIPKIT_RETRY_COOLDOWN", "90s")
		t.Setenv("QUIPKIT_LOGGING_LEVEL", "debug")

		cfg, err := Load(newViper(t))
		require.NoError(t, err)
		assert.Equal(t, "env-token", cfg.API.Token)
		assert.Equal(t, 90*time.Second, cfg.Retry.Cooldown)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})
}

func TestValidate(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"unknown window":    func(v *viper.Viper) { v.Set("rate_limit.window", "day") },
		"zero attempts":     func(v *viper.Viper) { v.Set("retry.max_attempts", 0) },
		"negative cooldown": func(v *viper.Viper) { v.Set("retry.cooldown", "-1s") },
		"zero cooldown":     func(v *viper.Viper) { v.Set("retry.cooldown", "0s") },
		"negative pages":    func(v *viper.Viper) { v.Set("export.max_pages", -1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := newViper(t)
			mutate(v)
			_, err := Load(v)
			require.Error(t, err)
		})
	}
}

func TestTemplate(t *testing.T) {
	data, err := Template()
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "30s", decoded["api"]["timeout"])
	assert.Equal(t, "", decoded["api"]["token"])
	assert.Equal(t, "minute", decoded["rate_limit"]["window"])
	assert.Equal(t, "1m0s", decoded["retry"]["cooldown"])
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path := DefaultConfigPath()
	if path == "" {
		t.Skip("no config directory resolvable")
	}
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Equal(t, AppName, filepath.Base(filepath.Dir(path)))
}
