package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/mcdev12/dinnerpick/go/internal/session"
	"github.com/rs/zerolog/log"
)

// SessionService defines what the handlers need from the session app
type SessionService interface {
	GetSession(ctx context.Context, code string) (*models.Session, error)
	JoinSession(ctx context.Context, req session.JoinSessionRequest) (*session.JoinResult, error)
	LeaveSession(ctx context.Context, code, participantID string) (*session.LeaveResult, error)
	GetParticipant(ctx context.Context, code, participantID string) (*models.Participant, error)
	FindParticipant(ctx context.Context, participantID string) (*models.Participant, error)
	ListParticipants(ctx context.Context, code string) ([]*models.Participant, error)
	CountParticipants(ctx context.Context, code string) (int, error)
	SetSubmitted(ctx context.Context, participantID string, submitted bool) error
	ResetSubmitted(ctx context.Context, code string) error
	UpdateSessionState(ctx context.Context, code string, state models.SessionState) error
	TransitionState(ctx context.Context, code string, from, to models.SessionState) (bool, error)
	Touch(ctx context.Context, code string) error
	RefreshTTL(ctx context.Context, code string) error
}

// SelectionService defines what the handlers need from the selection app
type SelectionService interface {
	SubmitSelections(ctx context.Context, code, participantID string, optionIDs []string) ([]string, error)
	GetSubmittedCount(ctx context.Context, code string) (int, error)
	ClearSelections(ctx context.Context, code string) error
}

// OverlapService defines what the handlers need from the overlap app
type OverlapService interface {
	CalculateOverlap(ctx context.Context, code string) (*models.Result, error)
	StoreResults(ctx context.Context, code string, overlapIDs []string) error
	GetStoredResult(ctx context.Context, code string) (*models.Result, bool, error)
}

// PresenceTracker records which participants hold an open connection
type PresenceTracker interface {
	MarkOnline(ctx context.Context, code, participantID string) error
	MarkOffline(ctx context.Context, code, participantID string) error
	Online(ctx context.Context, code string) (map[string]bool, error)
}

// Handlers implements the real-time protocol. It keeps no session state of
// its own; every decision is made from a fresh read of the store.
type Handlers struct {
	sessions    SessionService
	selections  SelectionService
	overlap     OverlapService
	presence    PresenceTracker
	broadcaster Broadcaster
}

// NewHandlers creates the protocol handlers
func NewHandlers(
	sessions SessionService,
	selections SelectionService,
	overlap OverlapService,
	presence PresenceTracker,
	broadcaster Broadcaster,
) *Handlers {
	return &Handlers{
		sessions:    sessions,
		selections:  selections,
		overlap:     overlap,
		presence:    presence,
		broadcaster: broadcaster,
	}
}

var _ Dispatcher = (*Handlers)(nil)

// HandleMessage decodes a client frame and runs the matching handler.
// Failures of any kind are answered on the ack channel.
func (h *Handlers) HandleMessage(ctx context.Context, client Client, message []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		client.Reply("", failure("Malformed message"))
		return
	}

	rc := &replyOnce{Client: client}
	defer h.recoverPanic(rc, frame.AckID, string(frame.Event))

	event, err := DecodeClientEvent(frame)
	if err != nil {
		rc.Reply(frame.AckID, h.fail(err, string(frame.Event), "", client.ID()))
		return
	}

	switch e := event.(type) {
	case JoinRequest:
		h.Join(ctx, rc, frame.AckID, e)
	case SubmitRequest:
		h.Submit(ctx, rc, frame.AckID, e)
	case RestartRequest:
		h.Restart(ctx, rc, frame.AckID, e)
	case LeaveRequest:
		h.Leave(ctx, rc, frame.AckID, e)
	}
}

// HandleDisconnect marks the participant behind a closed connection offline.
func (h *Handlers) HandleDisconnect(ctx context.Context, client Client) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("connection_id", client.ID()).Msg("disconnect handler panicked")
		}
	}()
	h.Disconnect(ctx, client)
}

// Join adds the caller to a session and announces them to the room.
func (h *Handlers) Join(ctx context.Context, c Client, ackID string, req JoinRequest) {
	req, err := validateJoin(req)
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionJoin), req.SessionCode, c.ID()))
		return
	}
	code := req.SessionCode

	if previous := c.Room(); previous != "" && previous != code {
		h.departRoom(ctx, c, previous)
	}

	res, err := h.sessions.JoinSession(ctx, session.JoinSessionRequest{
		Code:          code,
		ParticipantID: c.ID(),
		DisplayName:   req.DisplayName,
	})
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionJoin), code, c.ID()))
		return
	}

	c.JoinRoom(code)
	if err := h.presence.MarkOnline(ctx, code, c.ID()); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionJoin), code, c.ID()))
		return
	}
	if err := h.sessions.RefreshTTL(ctx, code); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionJoin), code, c.ID()))
		return
	}

	roster, err := h.roster(ctx, code, res.Participants)
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionJoin), code, c.ID()))
		return
	}

	ack := Ack{
		Success:       true,
		ParticipantID: c.ID(),
		Participants:  roster,
		Session:       res.Session,
	}
	if res.Session.State == models.SessionStateComplete {
		result, ok, err := h.overlap.GetStoredResult(ctx, code)
		if err != nil {
			log.Warn().Err(err).Str("session_code", code).Msg("failed to load stored result for joiner")
		} else if ok {
			ack.Results = result
		}
	}
	c.Reply(ackID, ack)

	h.broadcaster.BroadcastToRoom(code, ParticipantJoined{
		Participant:      participantView(res.Participant, true),
		ParticipantCount: res.Session.ParticipantCount,
	}, c.ID())
}

// Submit records the caller's selections and completes the round when
// everyone has submitted.
func (h *Handlers) Submit(ctx context.Context, c Client, ackID string, req SubmitRequest) {
	req, err := validateSubmit(req)
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSelectionSubmit), req.SessionCode, c.ID()))
		return
	}
	code := req.SessionCode

	sess, err := h.sessions.GetSession(ctx, code)
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSelectionSubmit), code, c.ID()))
		return
	}
	participant, err := h.sessions.GetParticipant(ctx, code, c.ID())
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSelectionSubmit), code, c.ID()))
		return
	}
	if sess.State == models.SessionStateComplete {
		c.Reply(ackID, h.fail(ErrRoundComplete, string(EventSelectionSubmit), code, c.ID()))
		return
	}

	if _, err := h.selections.SubmitSelections(ctx, code, participant.ID, req.Selections); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSelectionSubmit), code, c.ID()))
		return
	}
	if err := h.sessions.SetSubmitted(ctx, participant.ID, true); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSelectionSubmit), code, c.ID()))
		return
	}
	if _, err := h.sessions.TransitionState(ctx, code, models.SessionStateWaiting, models.SessionStateSelecting); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSelectionSubmit), code, c.ID()))
		return
	}
	if err := h.sessions.Touch(ctx, code); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSelectionSubmit), code, c.ID()))
		return
	}
	c.Reply(ackID, Ack{Success: true})

	submitted, total, err := h.progress(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to read submission progress")
		return
	}
	h.broadcaster.BroadcastToRoom(code, ParticipantSubmitted{
		ParticipantID:    participant.ID,
		DisplayName:      participant.DisplayName,
		SubmittedCount:   submitted,
		ParticipantCount: total,
	}, c.ID())

	if total > 0 && submitted == total {
		h.completeRound(ctx, code)
	}
}

// Restart clears the round so everyone can pick again.
func (h *Handlers) Restart(ctx context.Context, c Client, ackID string, req RestartRequest) {
	code, err := validateSessionCode(req.SessionCode)
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionRestart), req.SessionCode, c.ID()))
		return
	}

	if _, err := h.sessions.GetSession(ctx, code); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionRestart), code, c.ID()))
		return
	}
	participant, err := h.sessions.GetParticipant(ctx, code, c.ID())
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionRestart), code, c.ID()))
		return
	}

	if err := h.selections.ClearSelections(ctx, code); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionRestart), code, c.ID()))
		return
	}
	if err := h.sessions.ResetSubmitted(ctx, code); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionRestart), code, c.ID()))
		return
	}
	if err := h.sessions.UpdateSessionState(ctx, code, models.SessionStateSelecting); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionRestart), code, c.ID()))
		return
	}
	if err := h.sessions.Touch(ctx, code); err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionRestart), code, c.ID()))
		return
	}
	c.Reply(ackID, Ack{Success: true})

	log.Info().Str("session_code", code).Str("participant_id", participant.ID).Msg("session restarted")
	h.broadcaster.BroadcastToRoom(code, SessionRestarted{
		RestartedBy: participant.DisplayName,
		State:       models.SessionStateSelecting,
	}, "")
}

// Leave removes the caller from the session for good.
func (h *Handlers) Leave(ctx context.Context, c Client, ackID string, req LeaveRequest) {
	code, err := validateSessionCode(req.SessionCode)
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionLeave), req.SessionCode, c.ID()))
		return
	}

	res, err := h.sessions.LeaveSession(ctx, code, c.ID())
	if err != nil {
		c.Reply(ackID, h.fail(err, string(EventSessionLeave), code, c.ID()))
		return
	}
	if err := h.presence.MarkOffline(ctx, code, c.ID()); err != nil {
		log.Warn().Err(err).Str("session_code", code).Str("connection_id", c.ID()).Msg("failed to clear presence")
	}
	if c.Room() == code {
		c.LeaveRoom()
	}
	c.Reply(ackID, Ack{Success: true})

	h.announceLeave(ctx, code, res)
}

// Disconnect marks the participant offline. The participant record stays
// so the group can still complete.
func (h *Handlers) Disconnect(ctx context.Context, c Client) {
	participant, err := h.sessions.FindParticipant(ctx, c.ID())
	if err != nil {
		if !errors.Is(err, session.ErrParticipantNotFound) {
			log.Error().Err(err).Str("connection_id", c.ID()).Msg("failed to resolve disconnecting participant")
		}
		return
	}
	code := participant.SessionCode
	if _, err := h.sessions.GetParticipant(ctx, code, participant.ID); err != nil {
		return
	}

	if err := h.presence.MarkOffline(ctx, code, participant.ID); err != nil {
		log.Error().Err(err).Str("session_code", code).Str("connection_id", c.ID()).Msg("failed to mark participant offline")
		return
	}
	count, err := h.sessions.CountParticipants(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to count participants")
		return
	}

	log.Info().Str("session_code", code).Str("participant_id", participant.ID).Msg("participant disconnected")
	h.broadcaster.BroadcastToRoom(code, ParticipantLeft{
		ParticipantID:    participant.ID,
		DisplayName:      participant.DisplayName,
		IsOnline:         false,
		ParticipantCount: count,
	}, participant.ID)
}

// departRoom takes a connection out of a session it is switching away from.
func (h *Handlers) departRoom(ctx context.Context, c Client, code string) {
	c.LeaveRoom()
	res, err := h.sessions.LeaveSession(ctx, code, c.ID())
	if err != nil {
		if !errors.Is(err, session.ErrNotInSession) && !errors.Is(err, session.ErrSessionNotFound) {
			log.Warn().Err(err).Str("session_code", code).Str("connection_id", c.ID()).Msg("failed to leave previous session")
		}
		return
	}
	if err := h.presence.MarkOffline(ctx, code, c.ID()); err != nil {
		log.Warn().Err(err).Str("session_code", code).Msg("failed to clear presence")
	}
	h.announceLeave(ctx, code, res)
}

func (h *Handlers) announceLeave(ctx context.Context, code string, res *session.LeaveResult) {
	h.broadcaster.BroadcastToRoom(code, ParticipantLeft{
		ParticipantID:    res.Participant.ID,
		DisplayName:      res.Participant.DisplayName,
		IsOnline:         false,
		Left:             true,
		ParticipantCount: res.ParticipantCount,
	}, res.Participant.ID)
	h.completeIfReady(ctx, code)
}

// completeIfReady completes the round when the remaining participants have
// all submitted.
func (h *Handlers) completeIfReady(ctx context.Context, code string) {
	sess, err := h.sessions.GetSession(ctx, code)
	if err != nil || sess.State != models.SessionStateSelecting {
		return
	}
	submitted, total, err := h.progress(ctx, code)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to read submission progress")
		return
	}
	if total > 0 && submitted == total {
		h.completeRound(ctx, code)
	}
}

// completeRound claims the selecting -> complete transition so the results
// go out once per round, then computes and broadcasts them.
func (h *Handlers) completeRound(ctx context.Context, code string) {
	claimed, err := h.sessions.TransitionState(ctx, code, models.SessionStateSelecting, models.SessionStateComplete)
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to claim round completion")
		return
	}
	if !claimed {
		return
	}

	result, err := h.overlap.CalculateOverlap(ctx, code)
	if err == nil {
		err = h.overlap.StoreResults(ctx, code, result.OverlappingIDs)
	}
	if err != nil {
		log.Error().Err(err).Str("session_code", code).Msg("failed to compute results, reopening round")
		if revertErr := h.sessions.UpdateSessionState(ctx, code, models.SessionStateSelecting); revertErr != nil {
			log.Error().Err(revertErr).Str("session_code", code).Msg("failed to reopen round")
		}
		return
	}
	if err := h.sessions.RefreshTTL(ctx, code); err != nil {
		log.Warn().Err(err).Str("session_code", code).Msg("failed to refresh ttl after completion")
	}

	log.Info().
		Str("session_code", code).
		Bool("has_overlap", result.HasOverlap).
		Int("overlap", len(result.OverlappingIDs)).
		Msg("round complete")
	h.broadcaster.BroadcastToRoom(code, SessionResults{Result: *result}, "")
}

func (h *Handlers) progress(ctx context.Context, code string) (submitted, total int, err error) {
	if submitted, err = h.selections.GetSubmittedCount(ctx, code); err != nil {
		return 0, 0, err
	}
	if total, err = h.sessions.CountParticipants(ctx, code); err != nil {
		return 0, 0, err
	}
	return submitted, total, nil
}

func (h *Handlers) roster(ctx context.Context, code string, participants []*models.Participant) ([]models.ParticipantView, error) {
	online, err := h.presence.Online(ctx, code)
	if err != nil {
		return nil, err
	}
	views := make([]models.ParticipantView, len(participants))
	for i, p := range participants {
		views[i] = participantView(p, online[p.ID])
	}
	return views, nil
}

func participantView(p *models.Participant, online bool) models.ParticipantView {
	return models.ParticipantView{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		IsHost:       p.IsHost,
		HasSubmitted: p.HasSubmitted,
		IsOnline:     online,
	}
}

// fail turns an error into a failure ack, logging unexpected ones.
func (h *Handlers) fail(err error, event, code, connectionID string) Ack {
	message, expected := userMessage(err)
	if !expected {
		log.Error().
			Err(err).
			Str("event", event).
			Str("session_code", code).
			Str("connection_id", connectionID).
			Msg("handler failed")
	}
	return failure(message)
}

func (h *Handlers) recoverPanic(c *replyOnce, ackID, event string) {
	if r := recover(); r != nil {
		log.Error().
			Interface("panic", r).
			Str("event", event).
			Str("connection_id", c.ID()).
			Msg("handler panicked")
		if !c.hasReplied() {
			c.Reply(ackID, failure(genericFailure))
		}
	}
}

// replyOnce remembers whether a handler already answered.
type replyOnce struct {
	Client
	mu      sync.Mutex
	replied bool
}

func (r *replyOnce) Reply(ackID string, ack Ack) {
	r.mu.Lock()
	r.replied = true
	r.mu.Unlock()
	r.Client.Reply(ackID, ack)
}

func (r *replyOnce) hasReplied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replied
}
