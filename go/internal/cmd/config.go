package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mcdev12/dinnerpick/go/clients"
	"github.com/mcdev12/dinnerpick/go/internal/store"
	"github.com/spf13/pflag"
)

// Config is the server configuration, read from the environment and
// overridden by command-line flags.
type Config struct {
	Port          string        `env:"PORT" envDefault:"8080"`
	PublicBaseURL string        `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:5173"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SweepInterval time.Duration `env:"STORE_SWEEP_INTERVAL" envDefault:"5s"`

	NATSURL string `env:"NATS_URL"`

	CatalogSource         string `env:"CATALOG_SOURCE"`
	CatalogFile           string `env:"CATALOG_FILE" envDefault:"catalog.yaml"`
	PlacesAPIKey          string `env:"PLACES_API_KEY"`
	PlacesBaseURL         string `env:"PLACES_BASE_URL"`
	PlacesDefaultLocation string `env:"PLACES_DEFAULT_LOCATION"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	Store store.Config
}

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	flags := pflag.NewFlagSet("dinnerpick", pflag.ContinueOnError)
	flags.StringVar(&cfg.Port, "port", cfg.Port, "HTTP port to listen on")
	flags.StringVar(&cfg.CatalogFile, "catalog", cfg.CatalogFile, "path to the static restaurant catalog")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar((*string)(&cfg.Store.Driver), "store", string(cfg.Store.Driver), "session store driver (redis, memory)")
	flags.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "inactivity timeout of a session")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings the env tags cannot express.
func (c *Config) Validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.CatalogSource != "" && !clients.ValidateCatalogSource(clients.CatalogSource(c.CatalogSource)) {
		return fmt.Errorf("unknown CATALOG_SOURCE %q", c.CatalogSource)
	}
	return c.Store.Validate()
}
