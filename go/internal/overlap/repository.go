package overlap

import (
	"context"
	"fmt"

	"github.com/mcdev12/dinnerpick/go/internal/store"
)

// emptyResultMarker is stored in place of an empty result set, since a set
// with no members does not exist in the store.
const emptyResultMarker = "\x00empty"

// Repository reads selection sets and persists computed results.
type Repository struct {
	store store.Store
	keys  store.Keyspace
}

// NewRepository creates a new overlap repository
func NewRepository(s store.Store, keys store.Keyspace) *Repository {
	return &Repository{store: s, keys: keys}
}

func (r *Repository) Selections(ctx context.Context, code, participantID string) ([]string, error) {
	ids, err := r.store.SMembers(ctx, r.keys.Selection(code, participantID))
	if err != nil {
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}
	return ids, nil
}

// Intersect returns the option ids present in every participant's selection.
func (r *Repository) Intersect(ctx context.Context, code string, participantIDs []string) ([]string, error) {
	keys := make([]string, len(participantIDs))
	for i, id := range participantIDs {
		keys[i] = r.keys.Selection(code, id)
	}
	ids, err := r.store.SInter(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to intersect selections: %w", err)
	}
	return ids, nil
}

// SaveResult replaces the stored result of the session with ids.
func (r *Repository) SaveResult(ctx context.Context, code string, ids []string) error {
	key := r.keys.Result(code)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to reset result: %w", err)
	}
	members := ids
	if len(members) == 0 {
		members = []string{emptyResultMarker}
	}
	if _, err := r.store.SAdd(ctx, key, members...); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// LoadResult returns the stored result. computed is false when no result
// has been stored for the current round.
func (r *Repository) LoadResult(ctx context.Context, code string) (ids []string, computed bool, err error) {
	members, err := r.store.SMembers(ctx, r.keys.Result(code))
	if err != nil {
		return nil, false, fmt.Errorf("failed to load result: %w", err)
	}
	if len(members) == 0 {
		return nil, false, nil
	}
	ids = make([]string, 0, len(members))
	for _, m := range members {
		if m != emptyResultMarker {
			ids = append(ids, m)
		}
	}
	return ids, true, nil
}
