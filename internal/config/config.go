// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Quota   QuotaConfig   `mapstructure:"quota" yaml:"quota"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	// Scan gets its marching orders from CLI flags, not the config file.
	Scan ScanConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// APIConfig holds the connection details for the upstream reputation API.
type APIConfig struct {
	// Key is the static API key sent with every request. Sensitive, so it is
	// bound to the IOCSCOPE_API_KEY environment variable rather than stored
	// in the config file.
	Key        string        `mapstructure:"key" yaml:"-"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	GUIBaseURL string        `mapstructure:"gui_base_url" yaml:"gui_base_url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CacheConfig tunes the in-memory result cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// QuotaConfig mirrors the upstream free-tier request budget.
type QuotaConfig struct {
	Budget int           `mapstructure:"budget" yaml:"budget"`
	Window time.Duration `mapstructure:"window" yaml:"window"`
}

// HistoryConfig configures the persistent scan history store.
type HistoryConfig struct {
	Path  string `mapstructure:"path" yaml:"path"`
	Limit int    `mapstructure:"limit" yaml:"limit"`
}

// ScanConfig holds settings populated from CLI flags for a specific scan job.
type ScanConfig struct {
	Indicators    []string
	Type          string
	Relationships bool
	Output        string
	Format        string
	BatchDelay    time.Duration
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "iocscope")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- API --
	v.SetDefault("api.base_url", "https://www.virustotal.com/api/v3")
	v.SetDefault("api.gui_base_url", "https://www.virustotal.com/gui")
	v.SetDefault("api.timeout", "30s")

	// -- Cache --
	v.SetDefault("cache.ttl", "60m")

	// -- Quota: the upstream free tier allows 4 requests per minute. --
	v.SetDefault("quota.budget", 4)
	v.SetDefault("quota.window", "60s")

	// -- History --
	v.SetDefault("history.path", defaultHistoryPath())
	v.SetDefault("history.limit", 50)
}

// defaultHistoryPath places the scan history database under the user config
// directory, falling back to the working directory when that is unavailable.
func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "iocscope-history.db"
	}
	return filepath.Join(dir, "iocscope", "history.db")
}

// NewDefaultConfig creates a new configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data.
	v.BindEnv("api.key", "IOCSCOPE_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the key if Unmarshal didn't pick it up.
	if cfg.API.Key == "" {
		cfg.API.Key = os.Getenv("IOCSCOPE_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is a required configuration field")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be a positive duration")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be a positive duration")
	}
	if c.Quota.Budget <= 0 {
		return fmt.Errorf("quota.budget must be a positive integer")
	}
	if c.Quota.Window <= 0 {
		return fmt.Errorf("quota.window must be a positive duration")
	}
	if c.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be a positive integer")
	}
	return nil
}
