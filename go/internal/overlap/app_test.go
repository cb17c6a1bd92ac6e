package overlap

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dinnerpick/go/internal/catalog"
	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/mcdev12/dinnerpick/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const code = "XYZ789"

type fakeParticipants []*models.Participant

func (f fakeParticipants) ListParticipants(context.Context, string) ([]*models.Participant, error) {
	return f, nil
}

type harness struct {
	app   *App
	store *store.MemoryStore
	keys  store.Keyspace
}

func newHarness(t *testing.T, selections map[string][]string, participants ...*models.Participant) *harness {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore(clockwork.NewFakeClock())
	keys := store.NewKeyspace("test:")
	cache := catalog.NewCache(s, keys)
	require.NoError(t, cache.Save(ctx, code, []models.Option{
		{ID: "A", Name: "Alpha"}, {ID: "B", Name: "Bravo"}, {ID: "C", Name: "Charlie"}, {ID: "D", Name: "Delta"},
	}, time.Hour))
	for id, sel := range selections {
		_, err := s.SAdd(ctx, keys.Selection(code, id), sel...)
		require.NoError(t, err)
	}
	return &harness{
		app:   NewApp(NewRepository(s, keys), fakeParticipants(participants), cache),
		store: s,
		keys:  keys,
	}
}

func participant(id, name string) *models.Participant {
	return &models.Participant{ID: id, SessionCode: code, DisplayName: name}
}

func TestApp_CalculateOverlap_ThreeParticipants(t *testing.T) {
	h := newHarness(t,
		map[string][]string{"p1": {"A", "B", "C"}, "p2": {"B", "C", "D"}, "p3": {"C", "B"}},
		participant("p1", "Ana"), participant("p2", "Ben"), participant("p3", "Cy"),
	)

	result, err := h.app.CalculateOverlap(context.Background(), code)
	require.NoError(t, err)
	assert.True(t, result.HasOverlap)
	assert.Equal(t, []string{"B", "C"}, result.OverlappingIDs)
	require.Len(t, result.OverlappingOptions, 2)
	assert.Equal(t, "Bravo", result.OverlappingOptions[0].Name)
	assert.Equal(t, []string{"Alpha", "Bravo", "Charlie"}, result.AllSelectionsByDisplayName["Ana"])
	assert.Equal(t, []string{"Bravo", "Charlie", "Delta"}, result.AllSelectionsByDisplayName["Ben"])
}

func TestApp_CalculateOverlap_Disjoint(t *testing.T) {
	h := newHarness(t,
		map[string][]string{"p1": {"A"}, "p2": {"B"}},
		participant("p1", "Ana"), participant("p2", "Ben"),
	)

	result, err := h.app.CalculateOverlap(context.Background(), code)
	require.NoError(t, err)
	assert.False(t, result.HasOverlap)
	assert.Empty(t, result.OverlappingOptions)
	assert.Empty(t, result.OverlappingIDs)
}

func TestApp_CalculateOverlap_OrderIndependent(t *testing.T) {
	sel := map[string][]string{"p1": {"A", "B", "C"}, "p2": {"B", "C", "D"}}
	forward := newHarness(t, sel, participant("p1", "Ana"), participant("p2", "Ben"))
	backward := newHarness(t, sel, participant("p2", "Ben"), participant("p1", "Ana"))

	r1, err := forward.app.CalculateOverlap(context.Background(), code)
	require.NoError(t, err)
	r2, err := backward.app.CalculateOverlap(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, r1.OverlappingIDs, r2.OverlappingIDs)
}

func TestApp_CalculateOverlap_SingleParticipant(t *testing.T) {
	h := newHarness(t, map[string][]string{"p1": {"D", "A"}}, participant("p1", "Ana"))

	result, err := h.app.CalculateOverlap(context.Background(), code)
	require.NoError(t, err)
	assert.True(t, result.HasOverlap)
	assert.Equal(t, []string{"A", "D"}, result.OverlappingIDs)

	solo := newHarness(t, nil, participant("p1", "Ana"))
	result, err = solo.app.CalculateOverlap(context.Background(), code)
	require.NoError(t, err)
	assert.False(t, result.HasOverlap)
}

func TestApp_CalculateOverlap_NoParticipants(t *testing.T) {
	h := newHarness(t, nil)

	result, err := h.app.CalculateOverlap(context.Background(), code)
	require.NoError(t, err)
	assert.False(t, result.HasOverlap)
	assert.Empty(t, result.OverlappingOptions)
	assert.Empty(t, result.AllSelectionsByDisplayName)
}

func TestApp_CalculateOverlap_DropsUnknownOptions(t *testing.T) {
	h := newHarness(t,
		map[string][]string{"p1": {"A", "GONE"}, "p2": {"A", "GONE"}},
		participant("p1", "Ana"), participant("p2", "Ana"),
	)

	result, err := h.app.CalculateOverlap(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, result.OverlappingIDs)
	assert.Contains(t, result.AllSelectionsByDisplayName, "Ana")
	assert.Contains(t, result.AllSelectionsByDisplayName, "Ana (2)")
}

func TestApp_StoreResults(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t,
		map[string][]string{"p1": {"A"}, "p2": {"B"}},
		participant("p1", "Ana"), participant("p2", "Ben"),
	)
	repo := NewRepository(h.store, h.keys)

	_, computed, err := repo.LoadResult(ctx, code)
	require.NoError(t, err)
	assert.False(t, computed)

	require.NoError(t, h.app.StoreResults(ctx, code, nil))
	ids, computed, err := repo.LoadResult(ctx, code)
	require.NoError(t, err)
	assert.True(t, computed)
	assert.Empty(t, ids)

	require.NoError(t, h.app.StoreResults(ctx, code, []string{"A", "B"}))
	ids, computed, err = repo.LoadResult(ctx, code)
	require.NoError(t, err)
	assert.True(t, computed)
	assert.ElementsMatch(t, []string{"A", "B"}, ids)

	result, ok, err := h.app.GetStoredResult(ctx, code)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"A", "B"}, result.OverlappingIDs)
	assert.Equal(t, []string{"Alpha"}, result.AllSelectionsByDisplayName["Ana"])
}
