package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a string key does not exist.
	ErrNotFound = errors.New("store: key not found")
	// ErrWrongType is returned when a key holds a value of a different kind.
	ErrWrongType = errors.New("store: operation against a key holding the wrong kind of value")
)

// Store is the shared expiring key-value store the engine keeps all session
// state in. Every method is a single atomic operation against the store;
// Expire and CompareAndSwapField are atomic across all of their keys.
type Store interface {
	// Hashes
	HSet(ctx context.Context, key string, values map[string]string) error
	// HSetNX sets field only if it is absent. When it does and ttl is
	// positive, the key expires after ttl in the same step.
	HSetNX(ctx context.Context, key, field, value string, ttl time.Duration) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error)
	// CompareAndSwapField sets field to next only if it currently equals prev.
	CompareAndSwapField(ctx context.Context, key, field, prev, next string) (bool, error)

	// Sets
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SCard(ctx context.Context, key string) (int64, error)
	SInter(ctx context.Context, keys ...string) ([]string, error)
	SUnion(ctx context.Context, keys ...string) ([]string, error)
	// StoreCardinality writes the size of setKey into hashKey.field and
	// returns it, as one atomic step. It fails with ErrNotFound instead of
	// creating hashKey.
	StoreCardinality(ctx context.Context, setKey, hashKey, field string) (int64, error)

	// Strings
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Keys
	Exists(ctx context.Context, keys ...string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	// TTL returns the remaining time to live. A missing key or a key
	// without expiry yields a non-positive duration.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Expire sets ttl on every key in one atomic step.
	Expire(ctx context.Context, ttl time.Duration, keys ...string) error

	// SubscribeExpired streams the names of keys removed by expiry until
	// ctx is cancelled.
	SubscribeExpired(ctx context.Context) (<-chan string, error)

	Ping(ctx context.Context) error
	Close() error
}
