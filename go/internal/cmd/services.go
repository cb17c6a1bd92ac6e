package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dinnerpick/go/clients"
	"github.com/mcdev12/dinnerpick/go/clients/places_client"
	"github.com/mcdev12/dinnerpick/go/internal/catalog"
	"github.com/mcdev12/dinnerpick/go/internal/gateway"
	"github.com/mcdev12/dinnerpick/go/internal/overlap"
	"github.com/mcdev12/dinnerpick/go/internal/presence"
	"github.com/mcdev12/dinnerpick/go/internal/selection"
	"github.com/mcdev12/dinnerpick/go/internal/session"
	"github.com/mcdev12/dinnerpick/go/internal/store"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Store    store.Store
	Memory   *store.MemoryStore // nil unless the memory driver is selected
	Sessions *session.App
	Gateway  *gateway.Service
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	clock := clockwork.NewRealClock()

	// Store layer → Repository layer → App layer → Gateway
	s, memory, err := setupStore(ctx, cfg, clock)
	if err != nil {
		return nil, err
	}
	keys := store.NewKeyspace(cfg.Store.KeyPrefix)

	provider, err := setupCatalogProvider(cfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	cache := catalog.NewCache(s, keys)

	// Sessions
	sessionRepo := session.NewRepository(s, keys, clock)
	participantRepo := session.NewParticipantRepository(s, keys)
	sessionApp := session.NewApp(sessionRepo, participantRepo, cache, provider, clock, session.Config{
		TTL:           cfg.SessionTTL,
		PublicBaseURL: cfg.PublicBaseURL,
	})

	// Selections and overlap
	selectionApp := selection.NewApp(selection.NewRepository(s, keys), cache, sessionApp)
	overlapApp := overlap.NewApp(overlap.NewRepository(s, keys), sessionApp, cache)

	// Gateway
	gatewayConfig := gateway.DefaultConfig()
	if cfg.NATSURL != "" {
		gatewayConfig.RelayEnabled = true
		gatewayConfig.RelayConfig.URL = cfg.NATSURL
	}
	gatewayService, err := gateway.NewService(gatewayConfig, gateway.Dependencies{
		Sessions:   sessionApp,
		Selections: selectionApp,
		Overlap:    overlapApp,
		Presence:   presence.NewTracker(s, keys),
		Catalogs:   cache,
		Expiry:     s,
		Keys:       keys,
		Clock:      clock,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	return &Services{
		Store:    s,
		Memory:   memory,
		Sessions: sessionApp,
		Gateway:  gatewayService,
	}, nil
}

func setupStore(ctx context.Context, cfg *Config, clock clockwork.Clock) (store.Store, *store.MemoryStore, error) {
	switch cfg.Store.Driver {
	case store.DriverMemory:
		log.Warn().Msg("using in-memory store, sessions will not survive a restart or be shared between instances")
		memory := store.NewMemoryStore(clock)
		return memory, memory, nil
	default:
		redisStore, err := store.Connect(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.Store.Addr).Int("db", cfg.Store.DB).Msg("connected to redis")
		return redisStore, nil, nil
	}
}

// setupCatalogProvider picks the configured catalog source, or the highest
// priority one that has its settings present.
func setupCatalogProvider(cfg *Config) (catalog.Provider, error) {
	source := clients.CatalogSource(cfg.CatalogSource)
	if source == "" {
		var enabled []clients.CatalogSource
		if cfg.PlacesAPIKey != "" {
			enabled = append(enabled, clients.CatalogSourcePlaces)
		}
		if cfg.CatalogFile != "" {
			enabled = append(enabled, clients.CatalogSourceStatic)
		}
		var ok bool
		if source, ok = clients.SelectCatalogSource(enabled...); !ok {
			return nil, fmt.Errorf("no catalog source configured: set PLACES_API_KEY or CATALOG_FILE")
		}
	}

	switch source {
	case clients.CatalogSourcePlaces:
		if cfg.PlacesAPIKey == "" {
			return nil, fmt.Errorf("PLACES_API_KEY is required for the places catalog")
		}
		client := places_client.NewPlacesClient(cfg.PlacesAPIKey, cfg.PlacesBaseURL)
		log.Info().Str("source", string(source)).Msg("catalog provider ready")
		return catalog.NewPlacesProvider(client, cfg.PlacesDefaultLocation), nil
	default:
		provider, err := catalog.LoadStaticProvider(cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", cfg.CatalogFile, err)
		}
		log.Info().Str("source", string(source)).Str("file", cfg.CatalogFile).Msg("catalog provider ready")
		return provider, nil
	}
}
