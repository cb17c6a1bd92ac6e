package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/mcdev12/dinnerpick/go/internal/store"
)

const (
	fieldHostID           = "hostId"
	fieldHostName         = "hostName"
	fieldState            = "state"
	fieldParticipantCount = "participantCount"
	fieldCreatedAt        = "createdAt"
	fieldLastActivityAt   = "lastActivityAt"
)

// Repository maps session records onto store hashes.
type Repository struct {
	store store.Store
	keys  store.Keyspace
	clock clockwork.Clock
}

// NewRepository creates a new session repository
func NewRepository(s store.Store, keys store.Keyspace, clock clockwork.Clock) *Repository {
	return &Repository{store: s, keys: keys, clock: clock}
}

// Claim reserves code for a new session for at most ttl. It returns false
// when a live session already uses the code.
func (r *Repository) Claim(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	ok, err := r.store.HSetNX(ctx, r.keys.Session(code), fieldState, string(models.SessionStateWaiting), ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim session code: %w", err)
	}
	return ok, nil
}

// Create writes every field of sess.
func (r *Repository) Create(ctx context.Context, sess *models.Session) error {
	values := map[string]string{
		fieldHostID:           sess.HostID,
		fieldHostName:         sess.HostName,
		fieldState:            string(sess.State),
		fieldParticipantCount: strconv.Itoa(sess.ParticipantCount),
		fieldCreatedAt:        formatTime(sess.CreatedAt),
		fieldLastActivityAt:   formatTime(sess.LastActivityAt),
	}
	if err := r.store.HSet(ctx, r.keys.Session(sess.Code), values); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// Get loads a session. A record without a positive TTL is reported as
// ErrSessionNotFound, even if the store has not removed it yet.
func (r *Repository) Get(ctx context.Context, code string) (*models.Session, error) {
	key := r.keys.Session(code)
	values, err := r.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}

	ttl, err := r.store.TTL(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get session ttl: %w", err)
	}
	if ttl <= 0 {
		return nil, ErrSessionNotFound
	}

	sess := &models.Session{
		Code:      code,
		HostID:    values[fieldHostID],
		HostName:  values[fieldHostName],
		State:     models.SessionState(values[fieldState]),
		ExpiresAt: r.clock.Now().Add(ttl).UTC(),
	}
	// A hash without a valid state is a fragment left by a write racing expiry.
	if !sess.State.Valid() || sess.State == models.SessionStateExpired {
		return nil, ErrSessionNotFound
	}
	if raw := values[fieldParticipantCount]; raw != "" {
		if sess.ParticipantCount, err = strconv.Atoi(raw); err != nil {
			return nil, fmt.Errorf("invalid participant count %q for session %s: %w", raw, code, err)
		}
	}
	if sess.CreatedAt, err = parseTime(values[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("invalid createdAt for session %s: %w", code, err)
	}
	if sess.LastActivityAt, err = parseTime(values[fieldLastActivityAt]); err != nil {
		return nil, fmt.Errorf("invalid lastActivityAt for session %s: %w", code, err)
	}
	return sess, nil
}

func (r *Repository) UpdateState(ctx context.Context, code string, state models.SessionState) error {
	if err := r.store.HSet(ctx, r.keys.Session(code), map[string]string{fieldState: string(state)}); err != nil {
		return fmt.Errorf("failed to update session state: %w", err)
	}
	return nil
}

// CompareAndSwapState moves the session from prev to next only if it is
// still in prev.
func (r *Repository) CompareAndSwapState(ctx context.Context, code string, prev, next models.SessionState) (bool, error) {
	ok, err := r.store.CompareAndSwapField(ctx, r.keys.Session(code), fieldState, string(prev), string(next))
	if err != nil {
		return false, fmt.Errorf("failed to transition session state: %w", err)
	}
	return ok, nil
}

func (r *Repository) UpdateLastActivity(ctx context.Context, code string, at time.Time) error {
	if err := r.store.HSet(ctx, r.keys.Session(code), map[string]string{fieldLastActivityAt: formatTime(at)}); err != nil {
		return fmt.Errorf("failed to update last activity: %w", err)
	}
	return nil
}

func (r *Repository) SetHost(ctx context.Context, code, hostID string) error {
	if err := r.store.HSet(ctx, r.keys.Session(code), map[string]string{fieldHostID: hostID}); err != nil {
		return fmt.Errorf("failed to set session host: %w", err)
	}
	return nil
}

// SyncParticipantCount rewrites participantCount from the participant set.
func (r *Repository) SyncParticipantCount(ctx context.Context, code string) (int, error) {
	n, err := r.store.StoreCardinality(ctx, r.keys.Participants(code), r.keys.Session(code), fieldParticipantCount)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to sync participant count: %w", err)
	}
	return int(n), nil
}

// RefreshTTL sets ttl on every key of the session in one atomic step.
func (r *Repository) RefreshTTL(ctx context.Context, code string, participantIDs []string, ttl time.Duration) error {
	if err := r.store.Expire(ctx, ttl, r.sessionKeys(code, participantIDs)...); err != nil {
		return fmt.Errorf("failed to refresh session ttl: %w", err)
	}
	return nil
}

// DeleteAll removes every key of the session.
func (r *Repository) DeleteAll(ctx context.Context, code string, participantIDs []string) error {
	if err := r.store.Del(ctx, r.sessionKeys(code, participantIDs)...); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *Repository) sessionKeys(code string, participantIDs []string) []string {
	keys := []string{
		r.keys.Session(code),
		r.keys.Participants(code),
		r.keys.Presence(code),
		r.keys.Result(code),
		r.keys.Catalog(code),
	}
	for _, id := range participantIDs {
		keys = append(keys, r.keys.Participant(id), r.keys.Selection(code, id))
	}
	return keys
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}
