package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config contains server configuration parameters, loaded from the
// environment.
type Config struct {
	Port          string `env:"PORT" envDefault:"8080"`
	DatabasePath  string `env:"DATABASE_PATH" envDefault:"flashpack.db"`
	JWTSecret     string `env:"JWT_SECRET"`
	BcryptCost    int    `env:"BCRYPT_COST" envDefault:"12"`
	CookieSecure  bool   `env:"COOKIE_SECURE" envDefault:"true"`
	AllowedOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:5173"`
	LogLevel      int    `env:"LOG_LEVEL" envDefault:"0"`
}

// Load parses and validates configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 14 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", cfg.BcryptCost)
	}

	return cfg, nil
}
