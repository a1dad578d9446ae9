package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/recipe-api/internal/apperror"
)

const testSecret = "0123456789abcdef-test"

func TestNewConfig_DefaultValues(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "http://localhost:5173", cfg.FrontendURL)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/recipes.db", cfg.Database.Path)
	assert.Equal(t, 168*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "recipe-api", cfg.JWT.Issuer)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.False(t, cfg.Google.Enabled())
	assert.Equal(t, "http://localhost:8080/api/auth/google/callback", cfg.Google.RedirectURL)
}

func TestNewConfig_EnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*Config)
	}{
		{
			name:    "log level override",
			envVars: map[string]string{"LOG_LEVEL": "debug"},
			expected: func(cfg *Config) {
				assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
			},
		},
		{
			name: "postgres store",
			envVars: map[string]string{
				"DATABASE_DRIVER": "postgres",
				"DATABASE_DSN":    "postgres://u:p@localhost:5432/recipes?sslmode=disable",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, DriverPostgres, cfg.Database.Driver)
				assert.Equal(t, "postgres://u:p@localhost:5432/recipes?sslmode=disable", cfg.Database.DSN)
			},
		},
		{
			name: "jwt override",
			envVars: map[string]string{
				"JWT_EXPIRES_IN": "2h30m",
				"JWT_ISSUER":     "recipes-test",
			},
			expected: func(cfg *Config) {
				assert.Equal(t, 150*time.Minute, cfg.JWT.ExpiresIn)
				assert.Equal(t, "recipes-test", cfg.JWT.Issuer)
			},
		},
		{
			name: "google enabled",
			envVars: map[string]string{
				"GOOGLE_CLIENT_ID":     "client.apps.googleusercontent.com",
				"GOOGLE_CLIENT_SECRET": "shh",
			},
			expected: func(cfg *Config) {
				assert.True(t, cfg.Google.Enabled())
				assert.Equal(t, "shh", cfg.Google.ClientSecret)
			},
		},
		{
			name:    "cors list",
			envVars: map[string]string{"CORS_ALLOWED_ORIGINS": "https://a.example,https://b.example"},
			expected: func(cfg *Config) {
				assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := NewConfig()
			require.NoError(t, err)
			tt.expected(cfg)
		})
	}
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
	}{
		{name: "secret unset", envVars: map[string]string{"JWT_SECRET": ""}},
		{name: "secret too short", envVars: map[string]string{"JWT_SECRET": "short"}},
		{name: "bad duration", envVars: map[string]string{"JWT_SECRET": testSecret, "JWT_EXPIRES_IN": "soon"}},
		{name: "negative duration", envVars: map[string]string{"JWT_SECRET": testSecret, "JWT_EXPIRES_IN": "-1h"}},
		{name: "unknown driver", envVars: map[string]string{"JWT_SECRET": testSecret, "DATABASE_DRIVER": "mysql"}},
		{name: "postgres without dsn", envVars: map[string]string{"JWT_SECRET": testSecret, "DATABASE_DRIVER": "postgres"}},
		{name: "port out of range", envVars: map[string]string{"JWT_SECRET": testSecret, "PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := NewConfig()
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.ErrConfiguration)
		})
	}
}
