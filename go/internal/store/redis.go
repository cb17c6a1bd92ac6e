package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// expireScript refreshes the TTL of every key passed in KEYS in one step so
// the keys of a session never drift apart.
var expireScript = redis.NewScript(`
local n = 0
for _, key in ipairs(KEYS) do
  n = n + redis.call('PEXPIRE', key, ARGV[1])
end
return n
`)

// hsetnxScript sets a hash field if absent and, when ARGV[3] is positive,
// expires the key in the same step.
var hsetnxScript = redis.NewScript(`
if redis.call('HSETNX', KEYS[1], ARGV[1], ARGV[2]) == 0 then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return 1
`)

// casFieldScript sets a hash field only when it holds the expected value.
var casFieldScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], ARGV[1]) == ARGV[2] then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
  return 1
end
return 0
`)

// storeCardinalityScript copies SCARD of a set into a field of an existing
// hash. It returns -1 when the hash is gone.
var storeCardinalityScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
  return -1
end
local n = redis.call('SCARD', KEYS[1])
redis.call('HSET', KEYS[2], ARGV[1], n)
return n
`)

// RedisStore is the Store implementation backed by Redis.
type RedisStore struct {
	client *redis.Client
	db     int
}

// NewRedisStore creates a RedisStore on top of an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil for RedisStore")
	}
	return &RedisStore{
		client: client,
		db:     client.Options().DB,
	}
}

// Connect opens a Redis client for cfg and verifies it is reachable.
func Connect(ctx context.Context, cfg Config) (*RedisStore, error) {
	client := redis.NewClient(cfg.Options())
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}
	return NewRedisStore(client), nil
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(values)*2)
	for field, value := range values {
		args = append(args, field, value)
	}
	if err := s.client.HSet(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("redis: failed to hset %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) HSetNX(ctx context.Context, key, field, value string, ttl time.Duration) (bool, error) {
	n, err := hsetnxScript.Run(ctx, s.client, []string{key}, field, value, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: failed to hsetnx %s.%s: %w", key, field, err)
	}
	return n == 1, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	values, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to hgetall %s: %w", key, err)
	}
	return values, nil
}

func (s *RedisStore) HIncrBy(ctx context.Context, key, field string, incr int64) (int64, error) {
	n, err := s.client.HIncrBy(ctx, key, field, incr).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to hincrby %s.%s: %w", key, field, err)
	}
	return n, nil
}

func (s *RedisStore) CompareAndSwapField(ctx context.Context, key, field, prev, next string) (bool, error) {
	n, err := casFieldScript.Run(ctx, s.client, []string{key}, field, prev, next).Int64()
	if err != nil {
		return false, fmt.Errorf("redis: failed to compare-and-swap %s.%s: %w", key, field, err)
	}
	return n == 1, nil
}

func (s *RedisStore) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := s.client.SAdd(ctx, key, toArgs(members)...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to sadd %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := s.client.SRem(ctx, key, toArgs(members)...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to srem %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to smembers %s: %w", key, err)
	}
	return members, nil
}

func (s *RedisStore) SIsMember(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to sismember %s: %w", key, err)
	}
	return ok, nil
}

func (s *RedisStore) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to scard %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) SInter(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return []string{}, nil
	}
	members, err := s.client.SInter(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to sinter %d keys: %w", len(keys), err)
	}
	return members, nil
}

func (s *RedisStore) SUnion(ctx context.Context, keys ...string) ([]string, error) {
	if len(keys) == 0 {
		return []string{}, nil
	}
	members, err := s.client.SUnion(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to sunion %d keys: %w", len(keys), err)
	}
	return members, nil
}

func (s *RedisStore) StoreCardinality(ctx context.Context, setKey, hashKey, field string) (int64, error) {
	n, err := storeCardinalityScript.Run(ctx, s.client, []string{setKey, hashKey}, field).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to store cardinality of %s into %s.%s: %w", setKey, hashKey, field, err)
	}
	if n < 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis: failed to get %s: %w", key, err)
	}
	return value, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to check existence: %w", err)
	}
	return n, nil
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete %d keys: %w", len(keys), err)
	}
	return nil
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: failed to pttl %s: %w", key, err)
	}
	// go-redis reports -1 (no expiry) and -2 (missing) as raw negative values.
	return ttl, nil
}

func (s *RedisStore) Expire(ctx context.Context, ttl time.Duration, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := expireScript.Run(ctx, s.client, keys, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis: failed to refresh ttl on %d keys: %w", len(keys), err)
	}
	return nil
}

// SubscribeExpired subscribes to the keyevent expired channel of the
// client's database. Keyspace notifications are switched on when the
// server allows CONFIG SET; managed deployments must enable "Ex" themselves.
func (s *RedisStore) SubscribeExpired(ctx context.Context) (<-chan string, error) {
	if err := s.client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("could not enable keyspace notifications, expecting server config to provide them")
	}

	channel := fmt.Sprintf("__keyevent@%d__:expired", s.db)
	pubsub := s.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan string, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	log.Info().Str("channel", channel).Msg("subscribed to key expiry notifications")
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func toArgs(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}
