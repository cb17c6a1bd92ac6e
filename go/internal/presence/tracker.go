package presence

import (
	"context"
	"fmt"

	"github.com/mcdev12/dinnerpick/go/internal/store"
)

// Tracker records which participants of a session currently hold an open
// connection. It lives in the session's presence set so it expires with
// the rest of the session.
type Tracker struct {
	store store.Store
	keys  store.Keyspace
}

func NewTracker(s store.Store, keys store.Keyspace) *Tracker {
	return &Tracker{store: s, keys: keys}
}

func (t *Tracker) MarkOnline(ctx context.Context, code, participantID string) error {
	if _, err := t.store.SAdd(ctx, t.keys.Presence(code), participantID); err != nil {
		return fmt.Errorf("failed to mark participant online: %w", err)
	}
	return nil
}

func (t *Tracker) MarkOffline(ctx context.Context, code, participantID string) error {
	if _, err := t.store.SRem(ctx, t.keys.Presence(code), participantID); err != nil {
		return fmt.Errorf("failed to mark participant offline: %w", err)
	}
	return nil
}

func (t *Tracker) IsOnline(ctx context.Context, code, participantID string) (bool, error) {
	ok, err := t.store.SIsMember(ctx, t.keys.Presence(code), participantID)
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	return ok, nil
}

// Online returns the set of participant ids currently online.
func (t *Tracker) Online(ctx context.Context, code string) (map[string]bool, error) {
	ids, err := t.store.SMembers(ctx, t.keys.Presence(code))
	if err != nil {
		return nil, fmt.Errorf("failed to list online participants: %w", err)
	}
	online := make(map[string]bool, len(ids))
	for _, id := range ids {
		online[id] = true
	}
	return online, nil
}
