// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseDSN is the MySQL DSN in go-sql-driver format (e.g. user:pass@tcp(localhost:3306)/baohiem?parseTime=true).
	DatabaseDSN string `mapstructure:"DATABASE_DSN"`
	// JWTSecret is the shared secret for signing access tokens. Required.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTAlgorithm is the HMAC signing algorithm: HS256, HS384, or HS512.
	JWTAlgorithm string `mapstructure:"JWT_ALGORITHM"`
	// JWTAccessTTL is the access token lifetime (e.g. "30m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// OperatingMode selects the session validation posture: "strict" or "lenient".
	// Lenient tolerates missing or inconsistent session state; development only.
	OperatingMode string `mapstructure:"OPERATING_MODE"`
	// SessionTTL is how long an idle session stays valid before the store's cleanup expires it (e.g. "24h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// Env is the application environment (e.g. "development", "production"). Used with
	// OperatingMode to refuse a lenient posture in production (error at startup).
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("JWT_ACCESS_TTL", "30m")
	v.SetDefault("OPERATING_MODE", "strict")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("config: JWT_ALGORITHM must be HS256, HS384, or HS512, got %q", cfg.JWTAlgorithm)
	}
	switch cfg.OperatingMode {
	case "strict", "lenient":
	default:
		return nil, fmt.Errorf("config: OPERATING_MODE must be strict or lenient, got %q", cfg.OperatingMode)
	}
	if cfg.OperatingMode == "lenient" && cfg.Env == "production" {
		return nil, errors.New("config: OPERATING_MODE must not be lenient when APP_ENV=production")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// SessionTTLDuration parses SessionTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}
