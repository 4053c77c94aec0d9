// Package config loads service configuration from config.yaml and
// PHISHTRACK_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the phish-tracking service.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		// MaxUploadBytes bounds multipart import bodies.
		MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	} `mapstructure:"server"`

	Database struct {
		// Driver is "sqlite" or "postgres".
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Rules struct {
		PreviewLimit int `mapstructure:"preview_limit"`
	} `mapstructure:"rules"`

	Search struct {
		MaxPageSize int `mapstructure:"max_page_size"`
	} `mapstructure:"search"`

	Log struct {
		// Level is a zap level name: debug, info, warn, error.
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.max_upload_bytes", int64(64<<20)) // 64MB

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/phishtrack.db")

	v.SetDefault("rules.preview_limit", 200)
	v.SetDefault("search.max_page_size", 500)

	v.SetDefault("log.level", "info")
}

// Load reads config.yaml from the working directory or ./config, then
// applies PHISHTRACK_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("PHISHTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// No config file: defaults plus environment only.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn cannot be empty")
	}
	if cfg.Rules.PreviewLimit < 1 {
		return fmt.Errorf("rules.preview_limit must be positive, got %d", cfg.Rules.PreviewLimit)
	}
	if cfg.Search.MaxPageSize < 1 {
		return fmt.Errorf("search.max_page_size must be positive, got %d", cfg.Search.MaxPageSize)
	}
	if cfg.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("server.max_upload_bytes must be positive, got %d", cfg.Server.MaxUploadBytes)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", cfg.Log.Level)
	}
	return nil
}
