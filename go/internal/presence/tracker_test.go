package presence

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/dinnerpick/go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(store.NewMemoryStore(clockwork.NewFakeClock()), store.NewKeyspace("test:"))

	online, err := tracker.IsOnline(ctx, "ABC123", "p1")
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, tracker.MarkOnline(ctx, "ABC123", "p1"))
	require.NoError(t, tracker.MarkOnline(ctx, "ABC123", "p2"))
	require.NoError(t, tracker.MarkOnline(ctx, "OTHER1", "p3"))

	online, err = tracker.IsOnline(ctx, "ABC123", "p1")
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, tracker.MarkOffline(ctx, "ABC123", "p1"))
	require.NoError(t, tracker.MarkOffline(ctx, "ABC123", "missing"))

	set, err := tracker.Online(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"p2": true}, set)
}
