package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dinnerpick/go/internal/catalog"
	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/rs/zerolog/log"
)

// maxCodeAttempts bounds how many candidate codes CreateSession tries.
const maxCodeAttempts = 10

// SessionRepository defines what the app layer needs from the session repository
type SessionRepository interface {
	Claim(ctx context.Context, code string, ttl time.Duration) (bool, error)
	Create(ctx context.Context, sess *models.Session) error
	Get(ctx context.Context, code string) (*models.Session, error)
	UpdateState(ctx context.Context, code string, state models.SessionState) error
	CompareAndSwapState(ctx context.Context, code string, prev, next models.SessionState) (bool, error)
	UpdateLastActivity(ctx context.Context, code string, at time.Time) error
	SetHost(ctx context.Context, code, hostID string) error
	SyncParticipantCount(ctx context.Context, code string) (int, error)
	RefreshTTL(ctx context.Context, code string, participantIDs []string, ttl time.Duration) error
	DeleteAll(ctx context.Context, code string, participantIDs []string) error
}

// ParticipantStore defines what the app layer needs from the participant repository
type ParticipantStore interface {
	Add(ctx context.Context, p *models.Participant) error
	Remove(ctx context.Context, code, participantID string) error
	Get(ctx context.Context, participantID string) (*models.Participant, error)
	IDs(ctx context.Context, code string) ([]string, error)
	List(ctx context.Context, code string) ([]*models.Participant, error)
	Count(ctx context.Context, code string) (int, error)
	IsMember(ctx context.Context, code, participantID string) (bool, error)
	SetSubmitted(ctx context.Context, participantID string, submitted bool) error
	SetDisplayName(ctx context.Context, participantID, displayName string) error
}

// CatalogCache stores the options fetched for a session.
type CatalogCache interface {
	Save(ctx context.Context, code string, options []models.Option, ttl time.Duration) error
}

// Config holds the session lifetime settings.
type Config struct {
	TTL           time.Duration
	PublicBaseURL string
}

// App handles session and participant business logic
type App struct {
	sessions     SessionRepository
	participants ParticipantStore
	catalogs     CatalogCache
	provider     catalog.Provider
	clock        clockwork.Clock
	config       Config
	generateCode CodeGenerator
}

// NewApp creates a new session App
func NewApp(
	sessions SessionRepository,
	participants ParticipantStore,
	catalogs CatalogCache,
	provider catalog.Provider,
	clock clockwork.Clock,
	config Config,
) *App {
	return &App{
		sessions:     sessions,
		participants: participants,
		catalogs:     catalogs,
		provider:     provider,
		clock:        clock,
		config:       config,
		generateCode: GenerateCode,
	}
}

// WithCodeGenerator replaces the code source, used by tests.
func (a *App) WithCodeGenerator(gen CodeGenerator) *App {
	a.generateCode = gen
	return a
}

// TTL returns the inactivity timeout applied to every session key.
func (a *App) TTL() time.Duration { return a.config.TTL }

// ShareLink returns the URL a host hands out to invite others.
func (a *App) ShareLink(code string) string {
	return strings.TrimRight(a.config.PublicBaseURL, "/") + "/join/" + code
}

// CreateSession fetches the session's catalog, allocates a unique code and
// writes the session in the waiting state.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResult, error) {
	hostName, err := ValidateDisplayName(req.HostName)
	if err != nil {
		return nil, err
	}

	options, err := a.provider.Fetch(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	code, err := a.claimCode(ctx)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now().UTC()
	sess := &models.Session{
		Code:             code,
		HostID:           uuid.NewString(),
		HostName:         hostName,
		State:            models.SessionStateWaiting,
		ParticipantCount: 1,
		CreatedAt:        now,
		LastActivityAt:   now,
		ExpiresAt:        now.Add(a.config.TTL),
	}
	if err := a.writeSession(ctx, sess, options); err != nil {
		if delErr := a.sessions.DeleteAll(ctx, code, nil); delErr != nil {
			log.Error().Err(delErr).Str("session_code", code).Msg("failed to release claimed session code")
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().Str("session_code", code).Str("host", hostName).Int("options", len(options)).Msg("session created")
	return &CreateSessionResult{
		Session:   sess,
		ShareLink: a.ShareLink(code),
	}, nil
}

func (a *App) writeSession(ctx context.Context, sess *models.Session, options []models.Option) error {
	if err := a.sessions.Create(ctx, sess); err != nil {
		return err
	}
	if err := a.catalogs.Save(ctx, sess.Code, options, a.config.TTL); err != nil {
		return err
	}
	return a.sessions.RefreshTTL(ctx, sess.Code, nil, a.config.TTL)
}

func (a *App) claimCode(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := a.generateCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate session code: %w", err)
		}
		claimed, err := a.sessions.Claim(ctx, code, a.config.TTL)
		if err != nil {
			return "", err
		}
		if claimed {
			return code, nil
		}
		log.Debug().Str("session_code", code).Int("attempt", attempt).Msg("session code collision")
	}
	return "", ErrCodeSpaceExhausted
}

// GetSession retrieves a live session by code
func (a *App) GetSession(ctx context.Context, code string) (*models.Session, error) {
	return a.sessions.Get(ctx, code)
}

// JoinSession adds a participant to a session. Capacity is checked before
// the insert and again after it; a participant that pushed the session over
// capacity is removed again and gets ErrSessionFull.
func (a *App) JoinSession(ctx context.Context, req JoinSessionRequest) (*JoinResult, error) {
	displayName, err := ValidateDisplayName(req.DisplayName)
	if err != nil {
		return nil, err
	}
	if _, err := a.sessions.Get(ctx, req.Code); err != nil {
		return nil, err
	}

	member, err := a.participants.IsMember(ctx, req.Code, req.ParticipantID)
	if err != nil {
		return nil, err
	}
	if member {
		return a.rejoin(ctx, req.Code, req.ParticipantID, displayName)
	}

	count, err := a.participants.Count(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if count >= models.MaxParticipants {
		return nil, ErrSessionFull
	}

	participant := &models.Participant{
		ID:          req.ParticipantID,
		SessionCode: req.Code,
		DisplayName: displayName,
		JoinedAt:    a.clock.Now().UTC(),
		IsHost:      count == 0,
	}
	if err := a.participants.Add(ctx, participant); err != nil {
		return nil, err
	}

	after, err := a.participants.Count(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if after > models.MaxParticipants {
		log.Warn().
			Str("session_code", req.Code).
			Str("participant_id", req.ParticipantID).
			Int("count", after).
			Msg("concurrent joins exceeded capacity, rolling back")
		if err := a.participants.Remove(ctx, req.Code, req.ParticipantID); err != nil {
			return nil, fmt.Errorf("failed to roll back join: %w", err)
		}
		if _, err := a.sessions.SyncParticipantCount(ctx, req.Code); err != nil {
			return nil, err
		}
		return nil, ErrSessionFull
	}

	if _, err := a.sessions.SyncParticipantCount(ctx, req.Code); err != nil {
		return nil, err
	}
	if participant.IsHost {
		if err := a.sessions.SetHost(ctx, req.Code, participant.ID); err != nil {
			return nil, err
		}
	}
	if err := a.Touch(ctx, req.Code); err != nil {
		return nil, err
	}

	result, err := a.joinResult(ctx, req.Code, participant)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("session_code", req.Code).
		Str("participant_id", participant.ID).
		Bool("is_host", participant.IsHost).
		Int("participant_count", result.Session.ParticipantCount).
		Msg("participant joined")
	return result, nil
}

func (a *App) rejoin(ctx context.Context, code, participantID, displayName string) (*JoinResult, error) {
	participant, err := a.participants.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if participant.DisplayName != displayName {
		if err := a.participants.SetDisplayName(ctx, participantID, displayName); err != nil {
			return nil, err
		}
		participant.DisplayName = displayName
	}
	if err := a.Touch(ctx, code); err != nil {
		return nil, err
	}
	result, err := a.joinResult(ctx, code, participant)
	if err != nil {
		return nil, err
	}
	result.Rejoined = true
	return result, nil
}

func (a *App) joinResult(ctx context.Context, code string, participant *models.Participant) (*JoinResult, error) {
	sess, err := a.sessions.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	roster, err := a.participants.List(ctx, code)
	if err != nil {
		return nil, err
	}
	return &JoinResult{
		Participant:  participant,
		Session:      sess,
		Participants: roster,
	}, nil
}

// LeaveSession removes a participant and its selections from a session.
func (a *App) LeaveSession(ctx context.Context, code, participantID string) (*LeaveResult, error) {
	participant, err := a.GetParticipant(ctx, code, participantID)
	if err != nil {
		return nil, err
	}
	if err := a.participants.Remove(ctx, code, participantID); err != nil {
		return nil, err
	}
	count, err := a.sessions.SyncParticipantCount(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := a.Touch(ctx, code); err != nil {
		return nil, err
	}

	log.Info().Str("session_code", code).Str("participant_id", participantID).Int("participant_count", count).Msg("participant left")
	return &LeaveResult{Participant: participant, ParticipantCount: count}, nil
}

// UpdateSessionState writes the session state. Callers refresh the TTL.
func (a *App) UpdateSessionState(ctx context.Context, code string, state models.SessionState) error {
	if !state.Valid() {
		return fmt.Errorf("invalid session state %q", state)
	}
	return a.sessions.UpdateState(ctx, code, state)
}

// TransitionState moves the session from one state to another if it is
// still in the from state, reporting whether this call made the move.
func (a *App) TransitionState(ctx context.Context, code string, from, to models.SessionState) (bool, error) {
	return a.sessions.CompareAndSwapState(ctx, code, from, to)
}

// UpdateLastActivity records activity on the session. Callers refresh the TTL.
func (a *App) UpdateLastActivity(ctx context.Context, code string) error {
	return a.sessions.UpdateLastActivity(ctx, code, a.clock.Now().UTC())
}

// RefreshTTL resets the inactivity timer on every key of the session.
func (a *App) RefreshTTL(ctx context.Context, code string) error {
	ids, err := a.participants.IDs(ctx, code)
	if err != nil {
		return err
	}
	return a.sessions.RefreshTTL(ctx, code, ids, a.config.TTL)
}

// Touch records activity and refreshes the TTL.
func (a *App) Touch(ctx context.Context, code string) error {
	if err := a.UpdateLastActivity(ctx, code); err != nil {
		return err
	}
	return a.RefreshTTL(ctx, code)
}

// ExpireSession marks the session expired and deletes all of its keys.
func (a *App) ExpireSession(ctx context.Context, code string) error {
	if err := a.sessions.UpdateState(ctx, code, models.SessionStateExpired); err != nil {
		return err
	}
	ids, err := a.participants.IDs(ctx, code)
	if err != nil {
		return err
	}
	if err := a.sessions.DeleteAll(ctx, code, ids); err != nil {
		return err
	}
	log.Info().Str("session_code", code).Int("participants", len(ids)).Msg("session expired")
	return nil
}

func (a *App) ListParticipants(ctx context.Context, code string) ([]*models.Participant, error) {
	return a.participants.List(ctx, code)
}

func (a *App) ParticipantIDs(ctx context.Context, code string) ([]string, error) {
	return a.participants.IDs(ctx, code)
}

func (a *App) CountParticipants(ctx context.Context, code string) (int, error) {
	return a.participants.Count(ctx, code)
}

// GetParticipant returns a participant of the given session, or
// ErrNotInSession when the id is not a member of it.
func (a *App) GetParticipant(ctx context.Context, code, participantID string) (*models.Participant, error) {
	member, err := a.participants.IsMember(ctx, code, participantID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotInSession
	}
	participant, err := a.participants.Get(ctx, participantID)
	if err != nil {
		if errors.Is(err, ErrParticipantNotFound) {
			return nil, ErrNotInSession
		}
		return nil, err
	}
	return participant, nil
}

// FindParticipant resolves a connection id to its participant record in
// whichever session it joined.
func (a *App) FindParticipant(ctx context.Context, participantID string) (*models.Participant, error) {
	return a.participants.Get(ctx, participantID)
}

func (a *App) IsParticipant(ctx context.Context, code, participantID string) (bool, error) {
	return a.participants.IsMember(ctx, code, participantID)
}

func (a *App) SetSubmitted(ctx context.Context, participantID string, submitted bool) error {
	return a.participants.SetSubmitted(ctx, participantID, submitted)
}

// ResetSubmitted clears the submitted flag of every participant.
func (a *App) ResetSubmitted(ctx context.Context, code string) error {
	ids, err := a.participants.IDs(ctx, code)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := a.participants.SetSubmitted(ctx, id, false); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDisplayName trims name and checks its length.
func ValidateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxDisplayNameLength {
		return "", ErrInvalidDisplayName
	}
	return name, nil
}
