package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Tesouraria"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"tesouraria"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Auth struct {
		// Secret signs the HS256 bearer tokens.
		Secret string `envconfig:"AUTH_SECRET"`
		// Disabled runs the API without authentication, as the local administrator.
		Disabled  bool   `envconfig:"AUTH_DISABLED" default:"false"`
		AdminRole string `envconfig:"AUTH_ADMIN_ROLE" default:"admin"`
	}

	CORS struct {
		AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	Ledger struct {
		Currency string `envconfig:"LEDGER_CURRENCY" default:"EUR"`
		// ToleranceMinorUnits is the largest balance difference, in cents, that is not reported.
		ToleranceMinorUnits float64       `envconfig:"LEDGER_TOLERANCE_MINOR_UNITS" default:"0.5"`
		AuditTimeout        time.Duration `envconfig:"LEDGER_AUDIT_TIMEOUT" default:"5s"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

var ErrNoAuthSecret = errors.New("AUTH_SECRET is empty; set it, or set AUTH_DISABLED=true for local development")

// CheckAuth reports whether the API may start with this configuration.
func (c *Config) CheckAuth() error {
	if c.Auth.Secret == "" && !c.Auth.Disabled {
		return ErrNoAuthSecret
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.Ledger.Currency = strings.ToUpper(strings.TrimSpace(cfg.Ledger.Currency))
	if cfg.Ledger.ToleranceMinorUnits < 0 {
		return nil, fmt.Errorf("ledger tolerance must not be negative, got %v", cfg.Ledger.ToleranceMinorUnits)
	}

	return &cfg, nil
}
