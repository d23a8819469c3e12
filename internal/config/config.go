// Package config loads FirmDesk configuration from the environment.
// A .env file in the working directory is read first when present; variables
// already set in the environment take precedence over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/avissapr/firmdesk/internal/database"
	"github.com/avissapr/firmdesk/internal/security"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Env             string        `env:"ENV" envDefault:"development"`
	Port            string        `env:"PORT" envDefault:"8080"`
	TLSCertFile     string        `env:"TLS_CERT_FILE"`
	TLSKeyFile      string        `env:"TLS_KEY_FILE"`
	MigrationsPath  string        `env:"MIGRATIONS_PATH" envDefault:"migrations"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Database database.Config
	Security security.SecurityConfig
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads .env files (if any) and parses the environment into a Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Security.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if c.IsProduction() && c.TLSCertFile == "" {
		return errors.New("TLS_CERT_FILE and TLS_KEY_FILE are required in production")
	}
	if c.Security.BcryptCost < 10 {
		return fmt.Errorf("BCRYPT_COST %d is below the minimum of 10", c.Security.BcryptCost)
	}
	return nil
}
