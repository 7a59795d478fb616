// Package config loads client settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	ServerURL      string        `env:"TAPBATTLE_SERVER_URL"`
	EventsURL      string        `env:"TAPBATTLE_EVENTS_URL"`
	Player         string        `env:"TAPBATTLE_PLAYER"`
	AppID          string        `env:"TAPBATTLE_APP_ID"`
	HistoryDriver  string        `env:"TAPBATTLE_HISTORY_DRIVER" envDefault:"sqlite"`
	HistoryDSN     string        `env:"TAPBATTLE_HISTORY_DSN" envDefault:"tapbattle.db"`
	StatusAddr     string        `env:"TAPBATTLE_STATUS_ADDR" envDefault:"127.0.0.1:8080"`
	LogLevel       string        `env:"TAPBATTLE_LOG_LEVEL" envDefault:"info"`
	RequestTimeout time.Duration `env:"TAPBATTLE_REQUEST_TIMEOUT" envDefault:"5s"`
}

// Load reads the given .env files (a missing file is not an error), then
// parses the environment. Variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return errors.New("TAPBATTLE_SERVER_URL is required")
	}
	if strings.TrimSpace(c.EventsURL) == "" {
		return errors.New("TAPBATTLE_EVENTS_URL is required")
	}
	switch c.HistoryDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown history driver %q", c.HistoryDriver)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	return nil
}
