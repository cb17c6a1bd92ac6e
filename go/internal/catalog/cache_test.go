package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dinnerpick/go/internal/models"
	"github.com/mcdev12/dinnerpick/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SaveLoad(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	s := store.NewMemoryStore(clock)
	cache := NewCache(s, store.NewKeyspace("test:"))

	_, err := cache.Load(ctx, "ABC123")
	assert.ErrorIs(t, err, ErrCatalogNotFound)

	options := []models.Option{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	require.NoError(t, cache.Save(ctx, "ABC123", options, time.Minute))

	loaded, err := cache.Load(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, options, loaded)

	clock.Advance(2 * time.Minute)
	_, err = cache.Load(ctx, "ABC123")
	assert.ErrorIs(t, err, ErrCatalogNotFound)
}

func TestIndex(t *testing.T) {
	index := Index([]models.Option{{ID: "a", Name: "A"}})
	assert.Equal(t, "A", index["a"].Name)
	_, ok := index["b"]
	assert.False(t, ok)
}
