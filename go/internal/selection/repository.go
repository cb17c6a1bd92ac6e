package selection

import (
	"context"
	"fmt"

	"github.com/mcdev12/dinnerpick/go/internal/store"
)

// Repository stores each participant's selection as a set of option ids.
type Repository struct {
	store store.Store
	keys  store.Keyspace
}

// NewRepository creates a new selection repository
func NewRepository(s store.Store, keys store.Keyspace) *Repository {
	return &Repository{store: s, keys: keys}
}

func (r *Repository) Get(ctx context.Context, code, participantID string) ([]string, error) {
	ids, err := r.store.SMembers(ctx, r.keys.Selection(code, participantID))
	if err != nil {
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}
	return ids, nil
}

// Has reports whether the participant has a non-empty selection.
func (r *Repository) Has(ctx context.Context, code, participantID string) (bool, error) {
	n, err := r.store.SCard(ctx, r.keys.Selection(code, participantID))
	if err != nil {
		return false, fmt.Errorf("failed to check selection: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) Save(ctx context.Context, code, participantID string, optionIDs []string) error {
	if _, err := r.store.SAdd(ctx, r.keys.Selection(code, participantID), optionIDs...); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

// Clear deletes the selections of the given participants and the stored
// result of the session.
func (r *Repository) Clear(ctx context.Context, code string, participantIDs []string) error {
	keys := make([]string, 0, len(participantIDs)+1)
	keys = append(keys, r.keys.Result(code))
	for _, id := range participantIDs {
		keys = append(keys, r.keys.Selection(code, id))
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear selections: %w", err)
	}
	return nil
}
