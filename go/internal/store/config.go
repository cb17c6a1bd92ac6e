package store

import (
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Driver selects the Store implementation.
type Driver string

const (
	DriverRedis  Driver = "redis"
	DriverMemory Driver = "memory"
)

// Config holds the store connection settings.
type Config struct {
	Driver    Driver `env:"STORE_DRIVER" envDefault:"redis"`
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"dinner:"`
}

// Options returns the go-redis client options for the config.
func (c Config) Options() *redis.Options {
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	}
}

// Validate checks the driver name.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverRedis, DriverMemory:
		return nil
	default:
		return fmt.Errorf("unknown store driver %q", c.Driver)
	}
}
