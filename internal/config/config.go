// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/auth"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains server configuration parameters.
type Config struct {
	Port        int        `env:"PORT" envDefault:"8080"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	FrontendURL string     `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	CORSOrigins []string   `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
	Database    Database   `envPrefix:"DATABASE_"`
	JWT         JWT        `envPrefix:"JWT_"`
	Google      Google     `envPrefix:"GOOGLE_"`
	BcryptCost  int        `env:"BCRYPT_COST" envDefault:"12"`
}

// Database selects and locates the credential store.
type Database struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	Path   string `env:"PATH" envDefault:"data/recipes.db"`
	DSN    string `env:"DSN"`
}

// JWT contains session token parameters. Secret has no default: a server
// must never sign tokens with a well-known key.
type JWT struct {
	Secret    string        `env:"SECRET,required,notEmpty"`
	ExpiresIn time.Duration `env:"EXPIRES_IN" envDefault:"168h"`
	Issuer    string        `env:"ISSUER" envDefault:"recipe-api"`
}

// Google contains OAuth client parameters. An empty ClientID disables
// Google sign-in without affecting password login.
type Google struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL" envDefault:"http://localhost:8080/api/auth/google/callback"`
}

// Enabled reports whether Google sign-in is configured.
func (g Google) Enabled() bool {
	return g.ClientID != ""
}

// NewConfig loads configuration from environment variables and validates it.
// Every error it returns is fatal to startup.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", apperror.Configuration(err.Error()))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the rules env tags cannot express.
func (c *Config) Validate() error {
	if len(c.JWT.Secret) < auth.MinSecretLength {
		return apperror.Configuration(fmt.Sprintf("JWT_SECRET must be at least %d characters", auth.MinSecretLength))
	}
	if c.JWT.ExpiresIn <= 0 {
		return apperror.Configuration("JWT_EXPIRES_IN must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return apperror.Configuration(fmt.Sprintf("PORT %d is out of range", c.Port))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return apperror.Configuration("DATABASE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return apperror.Configuration("DATABASE_DSN is required for the postgres driver")
		}
	default:
		return apperror.Configuration(fmt.Sprintf("unknown DATABASE_DRIVER %q", c.Database.Driver))
	}

	if c.Google.Enabled() && c.Google.ClientSecret == "" {
		slog.Warn("GOOGLE_CLIENT_SECRET is empty: ID-token sign-in works, the redirect flow will fail")
	}
	return nil
}
