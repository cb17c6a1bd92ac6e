package overlap

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/dinnerpick/go/internal/catalog"
	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ResultRepository defines what the app layer needs from the repository
type ResultRepository interface {
	Selections(ctx context.Context, code, participantID string) ([]string, error)
	Intersect(ctx context.Context, code string, participantIDs []string) ([]string, error)
	SaveResult(ctx context.Context, code string, ids []string) error
	LoadResult(ctx context.Context, code string) ([]string, bool, error)
}

// ParticipantLister returns the participants of a session.
type ParticipantLister interface {
	ListParticipants(ctx context.Context, code string) ([]*models.Participant, error)
}

// CatalogLoader returns the options cached for a session.
type CatalogLoader interface {
	Load(ctx context.Context, code string) ([]models.Option, error)
}

// App computes and stores the overlap of a session's selections
type App struct {
	repo         ResultRepository
	participants ParticipantLister
	catalogs     CatalogLoader
}

// NewApp creates a new overlap App
func NewApp(repo ResultRepository, participants ParticipantLister, catalogs CatalogLoader) *App {
	return &App{
		repo:         repo,
		participants: participants,
		catalogs:     catalogs,
	}
}

// CalculateOverlap intersects every participant's selection. A single
// participant's overlap is their own selection. Ids missing from the
// session catalog are dropped and options come back in catalog order.
func (a *App) CalculateOverlap(ctx context.Context, code string) (*models.Result, error) {
	participants, err := a.participants.ListParticipants(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	if len(participants) == 0 {
		return emptyResult(), nil
	}

	options, err := a.loadCatalog(ctx, code)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}

	var overlapIDs []string
	if len(participants) == 1 {
		overlapIDs, err = a.repo.Selections(ctx, code, participants[0].ID)
	} else {
		overlapIDs, err = a.repo.Intersect(ctx, code, ids)
	}
	if err != nil {
		return nil, err
	}

	result, err := a.buildResult(ctx, code, participants, options, overlapIDs)
	if err != nil {
		return nil, err
	}
	if dropped := len(overlapIDs) - len(result.OverlappingOptions); dropped > 0 {
		log.Warn().Str("session_code", code).Int("dropped", dropped).Msg("overlap contained options missing from the catalog")
	}
	return result, nil
}

func (a *App) buildResult(
	ctx context.Context,
	code string,
	participants []*models.Participant,
	options []models.Option,
	overlapIDs []string,
) (*models.Result, error) {
	result := emptyResult()
	result.OverlappingOptions = resolve(options, overlapIDs)
	for _, option := range result.OverlappingOptions {
		result.OverlappingIDs = append(result.OverlappingIDs, option.ID)
	}
	result.HasOverlap = len(result.OverlappingOptions) > 0

	names := displayNames(participants)
	for _, p := range participants {
		selected, err := a.repo.Selections(ctx, code, p.ID)
		if err != nil {
			return nil, err
		}
		chosen := resolve(options, selected)
		labels := make([]string, len(chosen))
		for i, option := range chosen {
			labels[i] = option.Name
		}
		result.AllSelectionsByDisplayName[names[p.ID]] = labels
	}
	return result, nil
}

// StoreResults persists the overlapping option ids of the current round.
func (a *App) StoreResults(ctx context.Context, code string, overlapIDs []string) error {
	return a.repo.SaveResult(ctx, code, overlapIDs)
}

// GetStoredResult rebuilds a stored result. ok is false when the current
// round has not completed.
func (a *App) GetStoredResult(ctx context.Context, code string) (*models.Result, bool, error) {
	ids, computed, err := a.repo.LoadResult(ctx, code)
	if err != nil || !computed {
		return nil, false, err
	}
	participants, err := a.participants.ListParticipants(ctx, code)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list participants: %w", err)
	}
	options, err := a.loadCatalog(ctx, code)
	if err != nil {
		return nil, false, err
	}
	result, err := a.buildResult(ctx, code, participants, options, ids)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

func (a *App) loadCatalog(ctx context.Context, code string) ([]models.Option, error) {
	options, err := a.catalogs.Load(ctx, code)
	if err != nil {
		if errors.Is(err, catalog.ErrCatalogNotFound) {
			log.Warn().Str("session_code", code).Msg("no catalog cached for session, overlap resolves to nothing")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	return options, nil
}

func emptyResult() *models.Result {
	return &models.Result{
		OverlappingIDs:             []string{},
		OverlappingOptions:         []models.Option{},
		AllSelectionsByDisplayName: map[string][]string{},
	}
}

// resolve maps ids onto options in catalog order, skipping unknown ids.
func resolve(options []models.Option, ids []string) []models.Option {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]models.Option, 0, len(ids))
	for _, option := range options {
		if _, ok := wanted[option.ID]; ok {
			out = append(out, option)
		}
	}
	return out
}

// displayNames gives each participant a unique label, numbering repeats of
// the same display name in join order.
func displayNames(participants []*models.Participant) map[string]string {
	seen := make(map[string]int, len(participants))
	names := make(map[string]string, len(participants))
	for _, p := range participants {
		seen[p.DisplayName]++
		name := p.DisplayName
		if n := seen[p.DisplayName]; n > 1 {
			name = fmt.Sprintf("%s (%d)", p.DisplayName, n)
		}
		names[p.ID] = name
	}
	return names
}
