package store

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore() (*MemoryStore, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC))
	return NewMemoryStore(clock), clock
}

func TestMemoryStore_SetsBehaveLikeRedis(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	added, err := s.SAdd(ctx, "a", "1", "2", "3", "2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), added)

	_, err = s.SAdd(ctx, "b", "2", "3", "4")
	require.NoError(t, err)

	inter, err := s.SInter(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, inter)

	union, err := s.SUnion(ctx, "a", "b", "missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3", "4"}, union)

	inter, err = s.SInter(ctx, "a", "missing")
	require.NoError(t, err)
	assert.Empty(t, inter, "intersection with a missing set is empty")

	_, err = s.SRem(ctx, "b", "2", "3", "4")
	require.NoError(t, err)
	n, err := s.Exists(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "emptied set is removed")
}

func TestMemoryStore_WrongType(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	require.NoError(t, s.Set(ctx, "str", "v", 0))
	_, err := s.SAdd(ctx, "str", "x")
	assert.ErrorIs(t, err, ErrWrongType)
	_, err = s.HGetAll(ctx, "str")
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestMemoryStore_HashOperations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	ok, err := s.HSetNX(ctx, "h", "f", "1", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HSetNX(ctx, "h", "f", "2", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.HSetNX(ctx, "claimed", "f", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ttl, err := s.TTL(ctx, "claimed")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	n, err := s.HIncrBy(ctx, "h", "count", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = s.HIncrBy(ctx, "h", "count", -1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	swapped, err := s.CompareAndSwapField(ctx, "h", "f", "1", "9")
	require.NoError(t, err)
	assert.True(t, swapped)
	swapped, err = s.CompareAndSwapField(ctx, "h", "f", "1", "8")
	require.NoError(t, err)
	assert.False(t, swapped)
	swapped, err = s.CompareAndSwapField(ctx, "nope", "f", "", "x")
	require.NoError(t, err)
	assert.False(t, swapped, "missing hash never swaps")

	values, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"f": "9", "count": "2"}, values)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s, _ := newTestMemoryStore()
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ExpireAndTTL(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestMemoryStore()

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"a": "1"}))
	_, err := s.SAdd(ctx, "s", "x")
	require.NoError(t, err)

	ttl, err := s.TTL(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), ttl)

	require.NoError(t, s.Expire(ctx, time.Minute, "h", "s", "missing"))
	ttl, err = s.TTL(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	clock.Advance(30 * time.Second)
	ttl, err = s.TTL(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, ttl)

	clock.Advance(30 * time.Second)
	ttl, err = s.TTL(ctx, "s")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Duration(0))

	n, err := s.Exists(ctx, "h", "s")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryStore_SweepNotifiesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, clock := newTestMemoryStore()

	expired, err := s.SubscribeExpired(ctx)
	require.NoError(t, err)

	require.NoError(t, s.HSet(ctx, "dinner:session:ABC123", map[string]string{"state": "waiting"}))
	require.NoError(t, s.Set(ctx, "keep", "v", 0))
	require.NoError(t, s.Expire(ctx, time.Minute, "dinner:session:ABC123"))

	assert.Equal(t, 0, s.Sweep())
	clock.Advance(time.Minute)
	assert.Equal(t, 1, s.Sweep())

	select {
	case key := <-expired:
		assert.Equal(t, "dinner:session:ABC123", key)
	case <-time.After(time.Second):
		t.Fatal("expected an expiry notification")
	}

	n, err := s.Exists(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStore_SubscriptionClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := newTestMemoryStore()

	expired, err := s.SubscribeExpired(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-expired:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription channel was not closed")
	}
}

func TestMemoryStore_StoreCardinality(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestMemoryStore()

	_, err := s.StoreCardinality(ctx, "set", "h", "count")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"count": "9"}))
	n, err := s.StoreCardinality(ctx, "missing", "h", "count")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = s.SAdd(ctx, "set", "a", "b")
	require.NoError(t, err)
	n, err = s.StoreCardinality(ctx, "set", "h", "count")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	values, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "2", values["count"])
}
