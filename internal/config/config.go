// Package config provides configuration management for jellyvr using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "JELLYVR"

// Default configuration values.
const (
	defaultServerPort         = 3000
	defaultServerTimeout      = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultMaxOpenConns       = 25
	defaultMaxIdleConns       = 10
	defaultConnMaxIdleTime    = 30 * time.Minute
	defaultJellyfinURL        = "http://localhost:8096"
	defaultJellyfinTimeout    = 30 * time.Second
	defaultJellyfinRetries    = 2
	defaultDeviceName         = "Unknown VR HMD"
	defaultCacheLifetime      = 2 * time.Minute
	defaultSubtitleLanguage   = "eng"
	defaultProgressSchedule   = "@every 30s"
	defaultBreakerThreshold   = 5
	defaultBreakerResetWindow = 30 * time.Second
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Jellyfin JellyfinConfig `mapstructure:"jellyfin"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Progress ProgressConfig `mapstructure:"progress"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// PublicURL overrides the externally visible base URL that is otherwise
	// derived from the Host and X-Forwarded-Proto request headers.
	PublicURL   string   `mapstructure:"public_url"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// JellyfinConfig holds the upstream Jellyfin server settings.
type JellyfinConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	DeviceName string `mapstructure:"device_name"`
	// DeviceID identifies this gateway to Jellyfin. Empty means a UUID derived
	// from the host name and base_url.
	DeviceID         string        `mapstructure:"device_id"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `mapstructure:"breaker_reset"`
}

// CatalogConfig controls how the per-user catalog cache is built.
type CatalogConfig struct {
	CacheLifetime time.Duration `mapstructure:"cache_lifetime"`
	// PreferredSubtitleLanguage filters subtitle tracks on single-item
	// responses. Empty disables filtering.
	PreferredSubtitleLanguage string `mapstructure:"preferred_subtitle_language"`
}

// ProgressConfig controls the playback progress extrapolation loop.
type ProgressConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron expression, e.g. "@every 30s"
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with JELLYVR_ and use underscores for nesting.
// Example: JELLYVR_JELLYFIN_BASE_URL=https://jellyfin.example.com.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/jellyvr")
		v.AddConfigPath("$HOME/.jellyvr")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper unmarshals and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults are in place.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "jellyvr.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Jellyfin defaults
	v.SetDefault("jellyfin.base_url", defaultJellyfinURL)
	v.SetDefault("jellyfin.device_name", defaultDeviceName)
	v.SetDefault("jellyfin.device_id", "")
	v.SetDefault("jellyfin.timeout", defaultJellyfinTimeout)
	v.SetDefault("jellyfin.retry_attempts", defaultJellyfinRetries)
	v.SetDefault("jellyfin.breaker_threshold", defaultBreakerThreshold)
	v.SetDefault("jellyfin.breaker_reset", defaultBreakerResetWindow)

	// Catalog defaults
	v.SetDefault("catalog.cache_lifetime", defaultCacheLifetime)
	v.SetDefault("catalog.preferred_subtitle_language", defaultSubtitleLanguage)

	// Progress defaults
	v.SetDefault("progress.enabled", true)
	v.SetDefault("progress.schedule", defaultProgressSchedule)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}
	if c.Server.PublicURL != "" {
		if err := validateAbsoluteURL(c.Server.PublicURL); err != nil {
			return fmt.Errorf("server.public_url: %w", err)
		}
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	if !validDrivers[c.Database.Driver] {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres, mysql")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if err := validateAbsoluteURL(c.Jellyfin.BaseURL); err != nil {
		return fmt.Errorf("jellyfin.base_url: %w", err)
	}
	if c.Jellyfin.RetryAttempts < 0 {
		return fmt.Errorf("jellyfin.retry_attempts must not be negative")
	}

	if c.Catalog.CacheLifetime <= 0 {
		return fmt.Errorf("catalog.cache_lifetime must be positive")
	}
	if c.Catalog.PreferredSubtitleLanguage != "" {
		if _, err := language.Parse(c.Catalog.PreferredSubtitleLanguage); err != nil {
			return fmt.Errorf("catalog.preferred_subtitle_language: %w", err)
		}
	}

	if c.Progress.Enabled {
		if _, err := cron.ParseStandard(c.Progress.Schedule); err != nil {
			return fmt.Errorf("progress.schedule: %w", err)
		}
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func validateAbsoluteURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
