package main

import (
	"testing"
	"time"

	"github.com/mcdev12/dinnerpick/go/clients"
	"github.com/mcdev12/dinnerpick/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, store.DriverRedis, cfg.Store.Driver)
	assert.Equal(t, "dinner:", cfg.Store.KeyPrefix)
	assert.Equal(t, "catalog.yaml", cfg.CatalogFile)
}

func TestLoadConfig_EnvAndFlags(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_KEY_PREFIX", "staging:")

	cfg, err := loadConfig([]string{"--port", "9100", "--log-level", "debug"})
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Minute, cfg.SessionTTL)
	assert.Equal(t, store.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "staging:", cfg.Store.KeyPrefix)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig([]string{"--store", "etcd"})
	assert.ErrorContains(t, err, "unknown store driver")

	t.Setenv("CATALOG_SOURCE", "carrier-pigeon")
	_, err = loadConfig(nil)
	assert.ErrorContains(t, err, "unknown CATALOG_SOURCE")
}

func TestSetupCatalogProvider(t *testing.T) {
	_, err := setupCatalogProvider(&Config{})
	assert.ErrorContains(t, err, "no catalog source configured")

	_, err = setupCatalogProvider(&Config{CatalogSource: string(clients.CatalogSourcePlaces)})
	assert.ErrorContains(t, err, "PLACES_API_KEY")

	provider, err := setupCatalogProvider(&Config{PlacesAPIKey: "key", CatalogFile: "missing.yaml"})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}
