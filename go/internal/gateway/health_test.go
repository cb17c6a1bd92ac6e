package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newHealthService(t *testing.T) *Service {
	t.Helper()
	f := newGatewayFixture(t)
	svc, err := NewService(DefaultConfig(), Dependencies{
		Sessions:   f.sessions,
		Selections: f.selections,
		Overlap:    f.overlap,
		Presence:   f.presence,
		Catalogs:   f.cache,
		Expiry:     f.store,
		Keys:       f.keys,
		Clock:      f.clock,
	})
	require.NoError(t, err)
	return svc
}

func TestHealthChecker(t *testing.T) {
	svc := newHealthService(t)

	tests := []struct {
		name     string
		ping     error
		wantCode int
		healthy  bool
	}{
		{"store up", nil, http.StatusOK, true},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewHealthChecker(pingerFunc(func(context.Context) error { return tt.ping }), svc)

			rec := httptest.NewRecorder()
			checker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantCode, rec.Code)

			var status HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
			assert.Equal(t, tt.healthy, status.Healthy)
			assert.Equal(t, tt.healthy, status.StoreConnected)
			assert.False(t, status.RelayEnabled)
		})
	}
}
