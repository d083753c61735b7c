package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "https://www.virustotal.com/api/v3", cfg.API.BaseURL)
	assert.Equal(t, "https://www.virustotal.com/gui", cfg.API.GUIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 4, cfg.Quota.Budget)
	assert.Equal(t, time.Minute, cfg.Quota.Window)
	assert.Equal(t, 50, cfg.History.Limit)
	assert.NotEmpty(t, cfg.History.Path)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromViperReadsAPIKeyFromEnv(t *testing.T) {
	t.Setenv("IOCSCOPE_API_KEY", "secret-from-env")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", cfg.API.Key)
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("cache.ttl", "15m")
	v.Set("quota.budget", 10)
	v.Set("history.limit", 200)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 10, cfg.Quota.Budget)
	assert.Equal(t, 200, cfg.History.Limit)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url"},
		{"zero timeout", func(c *Config) { c.API.Timeout = 0 }, "api.timeout"},
		{"negative cache ttl", func(c *Config) { c.Cache.TTL = -time.Minute }, "cache.ttl"},
		{"zero quota budget", func(c *Config) { c.Quota.Budget = 0 }, "quota.budget"},
		{"zero quota window", func(c *Config) { c.Quota.Window = 0 }, "quota.window"},
		{"zero history limit", func(c *Config) { c.History.Limit = 0 }, "history.limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewConfigFromViperRejectsInvalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("quota.budget", 0)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
