package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mcdev12/dinnerpick/go/internal/catalog"
	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/mcdev12/dinnerpick/go/internal/session"
	"github.com/rs/zerolog/log"
)

// SessionAdmin defines the session operations exposed over HTTP
type SessionAdmin interface {
	CreateSession(ctx context.Context, req session.CreateSessionRequest) (*session.CreateSessionResult, error)
	GetSession(ctx context.Context, code string) (*models.Session, error)
	ListParticipants(ctx context.Context, code string) ([]*models.Participant, error)
	ExpireSession(ctx context.Context, code string) error
	ShareLink(code string) string
}

// CatalogReader loads the options cached for a session
type CatalogReader interface {
	Load(ctx context.Context, code string) ([]models.Option, error)
}

// SessionInfoResponse is returned by GET /api/sessions/{code}
type SessionInfoResponse struct {
	Session      *models.Session          `json:"session"`
	ShareLink    string                   `json:"shareLink"`
	Participants []models.ParticipantView `json:"participants"`
	ExpiresAt    time.Time                `json:"expiresAt"`
}

// OptionsResponse is returned by GET /api/sessions/{code}/options
type OptionsResponse struct {
	Code    string          `json:"code"`
	Options []models.Option `json:"options"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// StateHandler serves the HTTP side of sessions: creating them, looking
// them up and ending them.
type StateHandler struct {
	sessions    SessionAdmin
	catalogs    CatalogReader
	presence    PresenceTracker
	broadcaster Broadcaster
}

// NewStateHandler creates a new state handler
func NewStateHandler(sessions SessionAdmin, catalogs CatalogReader, presence PresenceTracker, broadcaster Broadcaster) *StateHandler {
	return &StateHandler{
		sessions:    sessions,
		catalogs:    catalogs,
		presence:    presence,
		broadcaster: broadcaster,
	}
}

// HandleCreateSession handles POST /api/sessions
func (h *StateHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.sessions.CreateSession(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrInvalidDisplayName):
		writeError(w, http.StatusBadRequest, "Host name must be between 1 and 50 characters")
		return
	case errors.Is(err, catalog.ErrEmptyCatalog):
		writeError(w, http.StatusUnprocessableEntity, "No restaurants found for that search")
		return
	case errors.Is(err, session.ErrCodeSpaceExhausted):
		log.Error().Err(err).Msg("could not allocate a session code")
		writeError(w, http.StatusServiceUnavailable, "Could not allocate a session code, please try again")
		return
	default:
		log.Error().Err(err).Msg("failed to create session")
		writeError(w, http.StatusBadGateway, "Failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// HandleGetSession handles GET /api/sessions/{code}
func (h *StateHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.GetSession(r.Context(), code)
	if err != nil {
		h.writeLookupError(w, err, code)
		return
	}
	participants, err := h.sessions.ListParticipants(r.Context(), code)
	if err != nil {
		h.writeLookupError(w, err, code)
		return
	}
	online, err := h.presence.Online(r.Context(), code)
	if err != nil {
		h.writeLookupError(w, err, code)
		return
	}

	views := make([]models.ParticipantView, len(participants))
	for i, p := range participants {
		views[i] = participantView(p, online[p.ID])
	}
	writeJSON(w, http.StatusOK, SessionInfoResponse{
		Session:      sess,
		ShareLink:    h.sessions.ShareLink(code),
		Participants: views,
		ExpiresAt:    sess.ExpiresAt,
	})
}

// HandleGetOptions handles GET /api/sessions/{code}/options
func (h *StateHandler) HandleGetOptions(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}
	if _, err := h.sessions.GetSession(r.Context(), code); err != nil {
		h.writeLookupError(w, err, code)
		return
	}

	options, err := h.catalogs.Load(r.Context(), code)
	if err != nil {
		if errors.Is(err, catalog.ErrCatalogNotFound) {
			writeError(w, http.StatusNotFound, "Session not found or has expired")
			return
		}
		h.writeLookupError(w, err, code)
		return
	}
	writeJSON(w, http.StatusOK, OptionsResponse{Code: code, Options: options})
}

// HandleEndSession handles DELETE /api/sessions/{code}
func (h *StateHandler) HandleEndSession(w http.ResponseWriter, r *http.Request) {
	code, ok := pathCode(w, r)
	if !ok {
		return
	}
	if _, err := h.sessions.GetSession(r.Context(), code); err != nil {
		h.writeLookupError(w, err, code)
		return
	}
	if err := h.sessions.ExpireSession(r.Context(), code); err != nil {
		h.writeLookupError(w, err, code)
		return
	}

	h.broadcaster.BroadcastToRoom(code, SessionExpired{Reason: ExpiryReasonEnded}, "")
	w.WriteHeader(http.StatusNoContent)
}

// RegisterStateRoutes registers session HTTP routes
func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{code}", h.HandleGetSession)
	mux.HandleFunc("GET /api/sessions/{code}/options", h.HandleGetOptions)
	mux.HandleFunc("DELETE /api/sessions/{code}", h.HandleEndSession)
}

func (h *StateHandler) writeLookupError(w http.ResponseWriter, err error, code string) {
	if errors.Is(err, session.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found or has expired")
		return
	}
	log.Error().Err(err).Str("session_code", code).Msg("session lookup failed")
	writeError(w, http.StatusInternalServerError, "Failed to load session")
}

func pathCode(w http.ResponseWriter, r *http.Request) (string, bool) {
	code := models.NormalizeSessionCode(r.PathValue("code"))
	if !models.IsValidSessionCode(code) {
		writeError(w, http.StatusBadRequest, sessionCodeError)
		return "", false
	}
	return code, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
