package selection

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/dinnerpick/go/internal/catalog"
	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/rs/zerolog/log"
)

// SelectionRepository defines what the app layer needs from the repository
type SelectionRepository interface {
	Get(ctx context.Context, code, participantID string) ([]string, error)
	Has(ctx context.Context, code, participantID string) (bool, error)
	Save(ctx context.Context, code, participantID string, optionIDs []string) error
	Clear(ctx context.Context, code string, participantIDs []string) error
}

// CatalogLoader returns the options cached for a session.
type CatalogLoader interface {
	Load(ctx context.Context, code string) ([]models.Option, error)
}

// ParticipantLister returns the participant ids of a session.
type ParticipantLister interface {
	ParticipantIDs(ctx context.Context, code string) ([]string, error)
}

// App handles selection business logic
type App struct {
	repo         SelectionRepository
	catalogs     CatalogLoader
	participants ParticipantLister
}

// NewApp creates a new selection App
func NewApp(repo SelectionRepository, catalogs CatalogLoader, participants ParticipantLister) *App {
	return &App{
		repo:         repo,
		catalogs:     catalogs,
		participants: participants,
	}
}

// SubmitSelections stores a participant's chosen option ids. A participant
// submits once per round; a second submission is rejected without touching
// the stored set.
func (a *App) SubmitSelections(ctx context.Context, code, participantID string, optionIDs []string) ([]string, error) {
	ids := dedupe(optionIDs)
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	options, err := a.catalogs.Load(ctx, code)
	if err != nil {
		if errors.Is(err, catalog.ErrCatalogNotFound) {
			return nil, ErrInvalidOptions
		}
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	index := catalog.Index(options)
	for _, id := range ids {
		if _, ok := index[id]; !ok {
			log.Debug().Str("session_code", code).Str("option_id", id).Msg("rejecting unknown option")
			return nil, ErrInvalidOptions
		}
	}

	submitted, err := a.repo.Has(ctx, code, participantID)
	if err != nil {
		return nil, err
	}
	if submitted {
		return nil, ErrAlreadySubmitted
	}

	if err := a.repo.Save(ctx, code, participantID, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetSelections returns the option ids a participant submitted.
func (a *App) GetSelections(ctx context.Context, code, participantID string) ([]string, error) {
	return a.repo.Get(ctx, code, participantID)
}

// GetSubmittedCount counts the participants with a non-empty selection.
func (a *App) GetSubmittedCount(ctx context.Context, code string) (int, error) {
	ids, err := a.participants.ParticipantIDs(ctx, code)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, id := range ids {
		has, err := a.repo.Has(ctx, code, id)
		if err != nil {
			return 0, err
		}
		if has {
			count++
		}
	}
	return count, nil
}

// ClearSelections wipes every participant's selection and the stored result.
func (a *App) ClearSelections(ctx context.Context, code string) error {
	ids, err := a.participants.ParticipantIDs(ctx, code)
	if err != nil {
		return err
	}
	if err := a.repo.Clear(ctx, code, ids); err != nil {
		return err
	}
	log.Info().Str("session_code", code).Int("participants", len(ids)).Msg("selections cleared")
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
