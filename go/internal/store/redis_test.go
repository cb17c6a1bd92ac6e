package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_ExpireRefreshesAllKeys(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.HSet(ctx, "dinner:session:ABC123", map[string]string{"state": "waiting"}))
	_, err := s.SAdd(ctx, "dinner:session:ABC123:participants", "p1")
	require.NoError(t, err)

	require.NoError(t, s.Expire(ctx, 10*time.Minute,
		"dinner:session:ABC123", "dinner:session:ABC123:participants", "dinner:session:ABC123:result"))

	assert.Equal(t, 10*time.Minute, mr.TTL("dinner:session:ABC123"))
	assert.Equal(t, 10*time.Minute, mr.TTL("dinner:session:ABC123:participants"))
	assert.False(t, mr.Exists("dinner:session:ABC123:result"))

	ttl, err := s.TTL(ctx, "dinner:session:ABC123")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	mr.FastForward(11 * time.Minute)
	ttl, err = s.TTL(ctx, "dinner:session:ABC123")
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, time.Duration(0))
}

func TestRedisStore_HSetNXSetsTTLOnlyWhenClaimed(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	ok, err := s.HSetNX(ctx, "dinner:session:ABC123", "state", "waiting", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Minute, mr.TTL("dinner:session:ABC123"))

	ok, err = s.HSetNX(ctx, "dinner:session:ABC123", "state", "complete", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 5*time.Minute, mr.TTL("dinner:session:ABC123"))
	assert.Equal(t, "waiting", mr.HGet("dinner:session:ABC123", "state"))

	ok, err = s.HSetNX(ctx, "plain", "f", "v", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, mr.TTL("plain"))
}

func TestRedisStore_CompareAndSwapField(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"state": "selecting"}))

	swapped, err := s.CompareAndSwapField(ctx, "h", "state", "selecting", "complete")
	require.NoError(t, err)
	assert.True(t, swapped)

	swapped, err = s.CompareAndSwapField(ctx, "h", "state", "selecting", "complete")
	require.NoError(t, err)
	assert.False(t, swapped)

	swapped, err = s.CompareAndSwapField(ctx, "missing", "state", "selecting", "complete")
	require.NoError(t, err)
	assert.False(t, swapped)

	values, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "complete", values["state"])
}

func TestRedisStore_SetOperations(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	_, err := s.SAdd(ctx, "a", "A", "B", "C")
	require.NoError(t, err)
	_, err = s.SAdd(ctx, "b", "B", "C", "D")
	require.NoError(t, err)
	_, err = s.SAdd(ctx, "c", "B", "C")
	require.NoError(t, err)

	inter, err := s.SInter(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"B", "C"}, inter)

	union, err := s.SUnion(ctx, "a", "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, union)

	ok, err := s.SIsMember(ctx, "a", "A")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.SCard(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRedisStore_GetMissingIsNotFound(t *testing.T) {
	s, _ := newTestRedisStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_StoreCardinality(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"participantCount": "1"}))
	_, err := s.SAdd(ctx, "set", "p1", "p2", "p3")
	require.NoError(t, err)

	n, err := s.StoreCardinality(ctx, "set", "h", "participantCount")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	values, err := s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "3", values["participantCount"])
}
