package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envPrefix is prepended to every variable name below, so the listener
// address is HEIMDALLR_LISTEN_ADDR and so on.
const envPrefix = "HEIMDALLR_"

// Config holds all environment-based configuration for heimdallr. The core
// packages never read ambient process state; everything they need is
// threaded in from here at construction time.
type Config struct {
	// Address the webhook listener binds to.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8443"`

	// TLS material. Either both are set or neither; without them the
	// server speaks plain HTTP (for deployments that terminate TLS
	// upstream).
	TLSCert string `env:"TLS_CERT"`
	TLSKey  string `env:"TLS_KEY"`

	// Database connection components, assembled by DatabaseURL.
	DatabaseHost     string `env:"DATABASE_HOST"`
	DatabasePort     int    `env:"DATABASE_PORT" envDefault:"5432"`
	DatabaseName     string `env:"DATABASE_NAME"`
	DatabaseUser     string `env:"DATABASE_USER"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	DatabasePoolSize int32  `env:"DATABASE_POOL_SIZE" envDefault:"10"`

	// Shared secret for HS256 signing and verification. Required; there
	// is deliberately no fallback value.
	JWTSecret string `env:"JWT_SECRET"`

	// Audience identifiers reported on authenticated statuses. Empty
	// means the server default audience applies.
	Audiences []string `env:"AUDIENCES" envSeparator:","`

	// Validity window length for tokens minted by issue-token.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"2h"`

	// Environment controls log format.
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// jwtSecretMinLen is the minimum length for the signing secret. Shorter
// secrets do not provide enough entropy for HMAC-based signatures.
const jwtSecretMinLen = 16

// warnInsecureEnvFile checks whether the .env file (if present) has overly
// permissive permissions. On Unix systems, group or world readable files
// risk exposing the signing secret and database password to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("HEIMDALLR_JWT_SECRET is required")
	}

	if len(c.JWTSecret) < jwtSecretMinLen {
		return fmt.Errorf("HEIMDALLR_JWT_SECRET too short (minimum %d characters)", jwtSecretMinLen)
	}

	if c.DatabaseHost == "" {
		return fmt.Errorf("HEIMDALLR_DATABASE_HOST is required")
	}

	if c.DatabaseName == "" {
		return fmt.Errorf("HEIMDALLR_DATABASE_NAME is required")
	}

	if c.DatabaseUser == "" {
		return fmt.Errorf("HEIMDALLR_DATABASE_USER is required")
	}

	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("HEIMDALLR_TLS_CERT and HEIMDALLR_TLS_KEY must be set together")
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("HEIMDALLR_TOKEN_TTL must be positive")
	}

	return nil
}

// TLSEnabled returns true when a certificate pair is configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// DatabaseURL assembles the postgres connection string from its components.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseName,
	)
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
