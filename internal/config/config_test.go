package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/radix")
	t.Setenv("APP_ENV", "")
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("PISTON_URL", "")
	t.Setenv("CORS_ORIGIN", "")
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3001", cfg.ServerAddr)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://emkc.org/api/v2/piston", cfg.PistonURL)
	assert.Equal(t, "http://localhost:3000", cfg.CORSOrigin)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_RequiresAuthSecretInProduction(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/radix")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "AUTH_SECRET")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/radix")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SERVER_ADDR", "127.0.0.1:9000")
	t.Setenv("PISTON_URL", "http://piston.internal:2000/api/v2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.ServerAddr)
	assert.Equal(t, "http://piston.internal:2000/api/v2", cfg.PistonURL)
	assert.False(t, cfg.IsDevelopment())
}
