package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/mcdev12/dinnerpick/go/internal/store"
)

const (
	fieldSessionCode  = "sessionCode"
	fieldDisplayName  = "displayName"
	fieldJoinedAt     = "joinedAt"
	fieldHasSubmitted = "hasSubmitted"
	fieldIsHost       = "isHost"
)

// ParticipantRepository maps participants onto a per-participant hash plus
// the session's participant id set.
type ParticipantRepository struct {
	store store.Store
	keys  store.Keyspace
}

// NewParticipantRepository creates a new participant repository
func NewParticipantRepository(s store.Store, keys store.Keyspace) *ParticipantRepository {
	return &ParticipantRepository{store: s, keys: keys}
}

// Add writes the participant record and adds its id to the session set.
func (r *ParticipantRepository) Add(ctx context.Context, p *models.Participant) error {
	values := map[string]string{
		fieldSessionCode:  p.SessionCode,
		fieldDisplayName:  p.DisplayName,
		fieldJoinedAt:     formatTime(p.JoinedAt),
		fieldHasSubmitted: strconv.FormatBool(p.HasSubmitted),
		fieldIsHost:       strconv.FormatBool(p.IsHost),
	}
	if err := r.store.HSet(ctx, r.keys.Participant(p.ID), values); err != nil {
		return fmt.Errorf("failed to write participant: %w", err)
	}
	if _, err := r.store.SAdd(ctx, r.keys.Participants(p.SessionCode), p.ID); err != nil {
		return fmt.Errorf("failed to add participant to session: %w", err)
	}
	return nil
}

// Remove deletes the participant record, its selection set and its
// membership in the session set.
func (r *ParticipantRepository) Remove(ctx context.Context, code, participantID string) error {
	if _, err := r.store.SRem(ctx, r.keys.Participants(code), participantID); err != nil {
		return fmt.Errorf("failed to remove participant from session: %w", err)
	}
	if err := r.store.Del(ctx, r.keys.Participant(participantID), r.keys.Selection(code, participantID)); err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	return nil
}

func (r *ParticipantRepository) Get(ctx context.Context, participantID string) (*models.Participant, error) {
	values, err := r.store.HGetAll(ctx, r.keys.Participant(participantID))
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrParticipantNotFound
	}

	joinedAt, err := parseTime(values[fieldJoinedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid joinedAt for participant %s: %w", participantID, err)
	}
	return &models.Participant{
		ID:           participantID,
		SessionCode:  values[fieldSessionCode],
		DisplayName:  values[fieldDisplayName],
		JoinedAt:     joinedAt,
		HasSubmitted: values[fieldHasSubmitted] == "true",
		IsHost:       values[fieldIsHost] == "true",
	}, nil
}

// IDs returns the participant ids of a session in lexical order.
func (r *ParticipantRepository) IDs(ctx context.Context, code string) ([]string, error) {
	ids, err := r.store.SMembers(ctx, r.keys.Participants(code))
	if err != nil {
		return nil, fmt.Errorf("failed to list participant ids: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// List returns the participants of a session ordered by join time. Ids
// whose record is gone are skipped.
func (r *ParticipantRepository) List(ctx context.Context, code string) ([]*models.Participant, error) {
	ids, err := r.IDs(ctx, code)
	if err != nil {
		return nil, err
	}

	participants := make([]*models.Participant, 0, len(ids))
	for _, id := range ids {
		p, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrParticipantNotFound) {
				continue
			}
			return nil, err
		}
		participants = append(participants, p)
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants, nil
}

func (r *ParticipantRepository) Count(ctx context.Context, code string) (int, error) {
	n, err := r.store.SCard(ctx, r.keys.Participants(code))
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return int(n), nil
}

func (r *ParticipantRepository) IsMember(ctx context.Context, code, participantID string) (bool, error) {
	ok, err := r.store.SIsMember(ctx, r.keys.Participants(code), participantID)
	if err != nil {
		return false, fmt.Errorf("failed to check participant membership: %w", err)
	}
	return ok, nil
}

func (r *ParticipantRepository) SetSubmitted(ctx context.Context, participantID string, submitted bool) error {
	values := map[string]string{fieldHasSubmitted: strconv.FormatBool(submitted)}
	if err := r.store.HSet(ctx, r.keys.Participant(participantID), values); err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	return nil
}

func (r *ParticipantRepository) SetDisplayName(ctx context.Context, participantID, displayName string) error {
	values := map[string]string{fieldDisplayName: displayName}
	if err := r.store.HSet(ctx, r.keys.Participant(participantID), values); err != nil {
		return fmt.Errorf("failed to update participant: %w", err)
	}
	return nil
}
