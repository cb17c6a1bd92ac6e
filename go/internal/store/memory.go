package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type entryKind int

const (
	kindString entryKind = iota
	kindHash
	kindSet
)

type entry struct {
	kind     entryKind
	str      string
	hash     map[string]string
	set      map[string]struct{}
	expireAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store. It mirrors the Redis semantics the
// engine relies on (empty sets and hashes vanish, lazy and swept expiry
// with notifications) and is used for single-node deployments and tests.
type MemoryStore struct {
	mu          sync.Mutex
	clock       clockwork.Clock
	data        map[string]*entry
	subscribers map[chan string]struct{}
}

// NewMemoryStore creates an empty MemoryStore driven by clock.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		clock:       clock,
		data:        make(map[string]*entry),
		subscribers: make(map[chan string]struct{}),
	}
}

var _ Store = (*MemoryStore)(nil)

// RunSweeper removes expired keys every interval until ctx is cancelled.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("memory store sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}

// Sweep removes every key whose expiry has passed and notifies subscribers.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	expired := make([]string, 0)
	for key, e := range m.data {
		if !e.expireAt.IsZero() && !now.Before(e.expireAt) {
			expired = append(expired, key)
		}
	}
	sort.Strings(expired)
	for _, key := range expired {
		delete(m.data, key)
		m.notifyLocked(key)
	}
	return len(expired)
}

// lookupLocked returns the live entry for key, expiring it lazily.
func (m *MemoryStore) lookupLocked(key string) *entry {
	e, ok := m.data[key]
	if !ok {
		return nil
	}
	if !e.expireAt.IsZero() && !m.clock.Now().Before(e.expireAt) {
		delete(m.data, key)
		m.notifyLocked(key)
		return nil
	}
	return e
}

func (m *MemoryStore) notifyLocked(key string) {
	for ch := range m.subscribers {
		select {
		case ch <- key:
		default:
			log.Warn().Str("key", key).Msg("expiry subscriber is slow, dropping notification")
		}
	}
}

func (m *MemoryStore) hashLocked(key string, create bool) (*entry, error) {
	e := m.lookupLocked(key)
	if e == nil {
		if !create {
			return nil, nil
		}
		e = &entry{kind: kindHash, hash: make(map[string]string)}
		m.data[key] = e
		return e, nil
	}
	if e.kind != kindHash {
		return nil, ErrWrongType
	}
	return e, nil
}

func (m *MemoryStore) setLocked(key string, create bool) (*entry, error) {
	e := m.lookupLocked(key)
	if e == nil {
		if !create {
			return nil, nil
		}
		e = &entry{kind: kindSet, set: make(map[string]struct{})}
		m.data[key] = e
		return e, nil
	}
	if e.kind != kindSet {
		return nil, ErrWrongType
	}
	return e, nil
}

func (m *MemoryStore) HSet(_ context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.hashLocked(key, true)
	if err != nil {
		return err
	}
	for field, value := range values {
		e.hash[field] = value
	}
	return nil
}

func (m *MemoryStore) HSetNX(_ context.Context, key, field, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.hashLocked(key, true)
	if err != nil {
		return false, err
	}
	if _, exists := e.hash[field]; exists {
		return false, nil
	}
	e.hash[field] = value
	if ttl > 0 {
		e.expireAt = m.clock.Now().Add(ttl)
	}
	return true, nil
}

func (m *MemoryStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.hashLocked(key, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if e == nil {
		return out, nil
	}
	for field, value := range e.hash {
		out[field] = value
	}
	return out, nil
}

func (m *MemoryStore) HIncrBy(_ context.Context, key, field string, incr int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.hashLocked(key, true)
	if err != nil {
		return 0, err
	}
	var current int64
	if raw, ok := e.hash[field]; ok {
		current, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, ErrWrongType
		}
	}
	current += incr
	e.hash[field] = strconv.FormatInt(current, 10)
	return current, nil
}

func (m *MemoryStore) CompareAndSwapField(_ context.Context, key, field, prev, next string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.hashLocked(key, false)
	if err != nil || e == nil {
		return false, err
	}
	if current, ok := e.hash[field]; !ok || current != prev {
		return false, nil
	}
	e.hash[field] = next
	return true, nil
}

func (m *MemoryStore) SAdd(_ context.Context, key string, members ...string) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.setLocked(key, true)
	if err != nil {
		return 0, err
	}
	var added int64
	for _, member := range members {
		if _, ok := e.set[member]; !ok {
			e.set[member] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (m *MemoryStore) SRem(_ context.Context, key string, members ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.setLocked(key, false)
	if err != nil || e == nil {
		return 0, err
	}
	var removed int64
	for _, member := range members {
		if _, ok := e.set[member]; ok {
			delete(e.set, member)
			removed++
		}
	}
	if len(e.set) == 0 {
		delete(m.data, key)
	}
	return removed, nil
}

func (m *MemoryStore) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.setLocked(key, false)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return []string{}, nil
	}
	return sortedMembers(e.set), nil
}

func (m *MemoryStore) SIsMember(_ context.Context, key, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.setLocked(key, false)
	if err != nil || e == nil {
		return false, err
	}
	_, ok := e.set[member]
	return ok, nil
}

func (m *MemoryStore) SCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, err := m.setLocked(key, false)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.set)), nil
}

func (m *MemoryStore) SInter(_ context.Context, keys ...string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(keys) == 0 {
		return []string{}, nil
	}
	sets := make([]map[string]struct{}, 0, len(keys))
	for _, key := range keys {
		e, err := m.setLocked(key, false)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return []string{}, nil
		}
		sets = append(sets, e.set)
	}

	out := make(map[string]struct{})
	for member := range sets[0] {
		inAll := true
		for _, other := range sets[1:] {
			if _, ok := other[member]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			out[member] = struct{}{}
		}
	}
	return sortedMembers(out), nil
}

func (m *MemoryStore) SUnion(_ context.Context, keys ...string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]struct{})
	for _, key := range keys {
		e, err := m.setLocked(key, false)
		if err != nil {
			return nil, err
		}
		if e == nil {
			continue
		}
		for member := range e.set {
			out[member] = struct{}{}
		}
	}
	return sortedMembers(out), nil
}

func (m *MemoryStore) StoreCardinality(_ context.Context, setKey, hashKey, field string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, err := m.hashLocked(hashKey, false)
	if err != nil {
		return 0, err
	}
	if hash == nil {
		return 0, ErrNotFound
	}
	set, err := m.setLocked(setKey, false)
	if err != nil {
		return 0, err
	}
	var n int64
	if set != nil {
		n = int64(len(set.set))
	}
	hash.hash[field] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.lookupLocked(key)
	if e == nil {
		return "", ErrNotFound
	}
	if e.kind != kindString {
		return "", ErrWrongType
	}
	return e.str, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{kind: kindString, str: value}
	if ttl > 0 {
		e.expireAt = m.clock.Now().Add(ttl)
	}
	m.data[key] = e
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, keys ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, key := range keys {
		if m.lookupLocked(key) != nil {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := m.lookupLocked(key)
	if e == nil {
		return -2, nil
	}
	if e.expireAt.IsZero() {
		return -1, nil
	}
	return e.expireAt.Sub(m.clock.Now()), nil
}

func (m *MemoryStore) Expire(_ context.Context, ttl time.Duration, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expireAt := m.clock.Now().Add(ttl)
	for _, key := range keys {
		if e := m.lookupLocked(key); e != nil {
			e.expireAt = expireAt
		}
	}
	return nil
}

func (m *MemoryStore) SubscribeExpired(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 128)

	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subscribers, ch)
		close(ch)
		m.mu.Unlock()
	}()

	return ch, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func sortedMembers(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for member := range set {
		out = append(out, member)
	}
	sort.Strings(out)
	return out
}
