// Package config loads the middleware configuration from a YAML file with
// environment-variable overrides. The caller owns the values; components
// receive them at construction time and never read the environment
// themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// PresetConfig describes one named rate-limit policy.
type PresetConfig struct {
	MaxRequests int           `yaml:"max_requests" validate:"required,min=1"`
	Window      time.Duration `yaml:"window" validate:"required,min=1s"`
}

// Config is the full middleware configuration surface.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	// Token authority
	SigningSecret string        `yaml:"signing_secret" validate:"required,min=32"`
	Issuer        string        `yaml:"issuer" validate:"required"`
	Audience      string        `yaml:"audience" validate:"required"`
	TokenTTL      time.Duration `yaml:"token_ttl" validate:"required,min=1m"`

	// CSRF guard
	CSRFTokenTTL time.Duration `yaml:"csrf_token_ttl" validate:"required,min=1m"`
	CSRFRotate   bool          `yaml:"csrf_rotate"`

	// Rate limiting
	Presets        map[string]PresetConfig `yaml:"presets" validate:"dive"`
	MaxClients     int                     `yaml:"max_clients" validate:"min=0"`
	SweepInterval  time.Duration           `yaml:"sweep_interval"`
	RedisAddr      string                  `yaml:"redis_addr"` // empty means in-process limiter
	TrustedProxies string                  `yaml:"trusted_proxies"`

	// Input handling
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"min=0"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is supplied.
// The signing secret has no default; it must come from the file or
// ARMOR_SIGNING_SECRET.
func Default() *Config {
	return &Config{
		ListenAddr:   ":8080",
		Issuer:       "biped",
		Audience:     "api",
		TokenTTL:     time.Hour,
		CSRFTokenTTL: 12 * time.Hour,
		Presets: map[string]PresetConfig{
			"strict":  {MaxRequests: 30, Window: 10 * time.Minute},
			"auth":    {MaxRequests: 10, Window: 5 * time.Minute},
			"general": {MaxRequests: 100, Window: 15 * time.Minute},
		},
		MaxClients:    100000,
		SweepInterval: 5 * time.Minute,
		MaxBodyBytes:  1 << 20,
		LogLevel:      "INFO",
	}
}

// Load reads the config file (optional), applies environment overrides, and
// validates the result. Returns every validation failure, not just the
// first.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration with struct tags and reports all
// failures in one error.
func (c *Config) Validate() error {
	validate := validator.New()

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msg := "invalid configuration:"
	for _, e := range validationErrs {
		msg += fmt.Sprintf(" %s (%s);", e.Field(), e.Tag())
	}
	return fmt.Errorf("%s", msg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARMOR_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ARMOR_SIGNING_SECRET"); v != "" {
		cfg.SigningSecret = v
	}
	if v := os.Getenv("ARMOR_ISSUER"); v != "" {
		cfg.Issuer = v
	}
	if v := os.Getenv("ARMOR_AUDIENCE"); v != "" {
		cfg.Audience = v
	}
	if v := os.Getenv("ARMOR_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.TokenTTL = d
		}
	}
	if v := os.Getenv("ARMOR_CSRF_TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CSRFTokenTTL = d
		}
	}
	if v := os.Getenv("ARMOR_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("ARMOR_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = v
	}
	if v := os.Getenv("ARMOR_MAX_CLIENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxClients = n
		}
	}
	if v := os.Getenv("ARMOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
