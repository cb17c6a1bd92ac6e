package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Pinger reports whether the session store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the gateway's view of its dependencies
type HealthStatus struct {
	Healthy          bool     `json:"healthy"`
	StoreConnected   bool     `json:"store_connected"`
	RelayEnabled     bool     `json:"relay_enabled"`
	RelayConnected   bool     `json:"relay_connected"`
	TotalConnections int      `json:"total_connections"`
	ActiveRooms      int      `json:"active_rooms"`
	Errors           []string `json:"errors"`
}

// HealthChecker checks the store, the relay and the socket count
type HealthChecker struct {
	store   Pinger
	service *Service
}

// NewHealthChecker creates a HealthChecker
func NewHealthChecker(store Pinger, service *Service) *HealthChecker {
	return &HealthChecker{store: store, service: service}
}

// Check gathers the current status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	if err := h.store.Ping(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("store ping failed: %v", err))
	} else {
		status.StoreConnected = true
	}

	if h.service.relay != nil {
		status.RelayEnabled = true
		status.RelayConnected = h.service.relay.Connected()
		if !status.RelayConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	stats := h.service.GetStats()
	status.TotalConnections = stats.TotalConnections
	status.ActiveRooms = stats.ActiveRooms
	return status
}

// ServeHTTP answers 200 when healthy and 503 otherwise
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		log.Warn().Strs("errors", status.Errors).Msg("health check failed")
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health response")
	}
}
