// Package config loads process configuration from the environment using
// struct tags, per spec.md §6's Environment section.
package config

import (
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is centralized process configuration for the gateway daemon.
type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	IdempotencyTTL          time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	PreapprovalDefaultTTL   time.Duration `env:"PREAPPROVAL_DEFAULT_TTL" envDefault:"15m"`
	OutboxFetchDefaultLimit int           `env:"OUTBOX_FETCH_DEFAULT_LIMIT" envDefault:"50"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr formats Host/Port into a net/http listen address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
