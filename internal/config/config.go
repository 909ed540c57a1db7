package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// We use a struct (not globals) so it's testable and explicit.
type Config struct {
	// Server
	ServerAddr string
	Env        string // "development" or "production"

	// Database
	DatabaseURL string

	// Code execution sandbox
	PistonURL string

	// Auth
	AuthSecret string // HS256 key for the internal adapter API

	// CORS
	CORSOrigin string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first if present, matching how the
// server is run in development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerAddr:  getEnvOrDefault("SERVER_ADDR", "0.0.0.0:3001"),
		Env:         getEnvOrDefault("APP_ENV", "development"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		PistonURL:   getEnvOrDefault("PISTON_URL", "https://emkc.org/api/v2/piston"),
		AuthSecret:  os.Getenv("AUTH_SECRET"),
		CORSOrigin:  getEnvOrDefault("CORS_ORIGIN", "http://localhost:3000"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.AuthSecret == "" && !c.IsDevelopment() {
		return fmt.Errorf("AUTH_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
