package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/dinnerpick/go/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateMux(f *gatewayFixture) *http.ServeMux {
	mux := http.NewServeMux()
	NewStateHandler(f.sessions, f.cache, f.presence, f.broadcaster).RegisterStateRoutes(mux)
	return mux
}

func doRequest(t *testing.T, mux http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestStateHandler_SessionLifecycle(t *testing.T) {
	f := newGatewayFixture(t)
	mux := newStateMux(f)

	rec := doRequest(t, mux, http.MethodPost, "/api/sessions", map[string]string{"hostName": "Hana"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created session.CreateSessionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	code := created.Session.Code
	assert.Equal(t, "https://dinner.test/join/"+code, created.ShareLink)

	f.join(t, newFakeClient("ana"), code, "Ana")

	rec = doRequest(t, mux, http.MethodGet, "/api/sessions/"+code, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var info SessionInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, code, info.Session.Code)
	assert.Equal(t, created.ShareLink, info.ShareLink)
	require.Len(t, info.Participants, 1)
	assert.True(t, info.Participants[0].IsOnline)
	assert.False(t, info.ExpiresAt.IsZero())

	rec = doRequest(t, mux, http.MethodGet, "/api/sessions/"+code+"/options", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var options OptionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &options))
	assert.Len(t, options.Options, 4)

	rec = doRequest(t, mux, http.MethodDelete, "/api/sessions/"+code, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	expired := f.broadcaster.named(EventSessionExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, SessionExpired{Reason: ExpiryReasonEnded}, expired[0].event)

	rec = doRequest(t, mux, http.MethodGet, "/api/sessions/"+code, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStateHandler_Errors(t *testing.T) {
	f := newGatewayFixture(t)
	mux := newStateMux(f)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"blank host", http.MethodPost, "/api/sessions", map[string]string{"hostName": " "}, http.StatusBadRequest},
		{"bad code", http.MethodGet, "/api/sessions/abc", nil, http.StatusBadRequest},
		{"unknown session", http.MethodGet, "/api/sessions/ZZZZZZ", nil, http.StatusNotFound},
		{"unknown options", http.MethodGet, "/api/sessions/ZZZZZZ/options", nil, http.StatusNotFound},
		{"end unknown", http.MethodDelete, "/api/sessions/ZZZZZZ", nil, http.StatusNotFound},
		{"wrong method", http.MethodPut, "/api/sessions/ZZZZZZ", nil, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, mux, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
