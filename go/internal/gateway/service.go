package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dinnerpick/go/internal/store"
	"github.com/rs/zerolog/log"
)

// Service is the real-time gateway: WebSocket connections, the protocol
// handlers, the HTTP session routes and the expiry notifier.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	handlers          *Handlers
	relay             *NATSRelay
	expiry            *ExpiryNotifier
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	RelayConfig      RelayConfig
	// RelayEnabled fans broadcasts out over NATS for multi-instance deployments.
	RelayEnabled bool
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		RelayConfig:      DefaultRelayConfig(),
	}
}

// Dependencies are the application services the gateway drives
type Dependencies struct {
	Sessions interface {
		SessionService
		SessionAdmin
	}
	Selections SelectionService
	Overlap    OverlapService
	Presence   PresenceTracker
	Catalogs   CatalogReader
	Expiry     ExpirySource
	Keys       store.Keyspace
	Clock      clockwork.Clock
}

// NewService wires the gateway
func NewService(config Config, deps Dependencies) (*Service, error) {
	connectionManager := NewConnectionManager(config.ConnectionConfig, deps.Clock)

	var broadcaster Broadcaster = connectionManager
	var relay *NATSRelay
	if config.RelayEnabled {
		var err error
		relay, err = NewNATSRelay(connectionManager, config.RelayConfig, deps.Clock)
		if err != nil {
			return nil, fmt.Errorf("failed to create room relay: %w", err)
		}
		broadcaster = relay
	}

	handlers := NewHandlers(deps.Sessions, deps.Selections, deps.Overlap, deps.Presence, broadcaster)
	connectionManager.SetDispatcher(handlers)

	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
		stateHandler:      NewStateHandler(deps.Sessions, deps.Catalogs, deps.Presence, broadcaster),
		handlers:          handlers,
		relay:             relay,
		// Every instance receives the store's expiry events, so they are
		// delivered locally rather than relayed.
		expiry: NewExpiryNotifier(deps.Expiry, deps.Keys, connectionManager),
	}, nil
}

// Start runs the gateway until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Bool("relay", s.relay != nil).Msg("starting gateway service")

	go s.connectionManager.Start(ctx)

	if s.relay != nil {
		if err := s.relay.Start(); err != nil {
			return err
		}
	}

	go func() {
		if err := s.expiry.Run(ctx); err != nil {
			log.Error().Err(err).Msg("expiry notifier failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("gateway service shutting down")
	return s.Stop()
}

// Stop releases the relay connection
func (s *Service) Stop() error {
	if s.relay != nil {
		if err := s.relay.Stop(); err != nil {
			log.Error().Err(err).Msg("failed to stop room relay")
		}
	}
	log.Info().Msg("gateway service stopped")
	return nil
}

// RegisterRoutes registers the WebSocket and session HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
