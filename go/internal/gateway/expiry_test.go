package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanSource struct {
	ch  chan string
	err error
}

func (s chanSource) SubscribeExpired(context.Context) (<-chan string, error) {
	return s.ch, s.err
}

func TestExpiryNotifier_BroadcastsSessionExpiry(t *testing.T) {
	f := newGatewayFixture(t)
	source := chanSource{ch: make(chan string, 4)}
	notifier := NewExpiryNotifier(source, f.keys, f.broadcaster)

	done := make(chan error, 1)
	go func() { done <- notifier.Run(context.Background()) }()

	source.ch <- f.keys.Catalog("ABC123")
	source.ch <- f.keys.Session("ABC123")
	close(source.ch)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop after the source closed")
	}

	expired := f.broadcaster.named(EventSessionExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, "ABC123", expired[0].room)
	assert.Empty(t, expired[0].exceptID)
	assert.Equal(t, SessionExpired{Reason: ExpiryReasonInactivity}, expired[0].event)
}

func TestExpiryNotifier_WithMemoryStore(t *testing.T) {
	f := newGatewayFixture(t)
	code := f.createSession(t)
	f.join(t, newFakeClient("ana"), code, "Ana")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	expired, err := f.store.SubscribeExpired(ctx)
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	f.store.Sweep()

	notifier := NewExpiryNotifier(f.store, f.keys, f.broadcaster)
drain:
	for {
		select {
		case key := <-expired:
			notifier.handleExpiredKey(key)
		default:
			break drain
		}
	}

	events := f.broadcaster.named(EventSessionExpired)
	require.Len(t, events, 1)
	assert.Equal(t, code, events[0].room)

	_, err = f.sessions.GetSession(ctx, code)
	assert.Error(t, err)
}

func TestExpiryNotifier_SubscribeFailure(t *testing.T) {
	f := newGatewayFixture(t)
	notifier := NewExpiryNotifier(chanSource{err: errors.New("no pubsub")}, f.keys, f.broadcaster)
	assert.ErrorContains(t, notifier.Run(context.Background()), "no pubsub")
}

func TestExpiryNotifier_IgnoresOtherKeys(t *testing.T) {
	f := newGatewayFixture(t)
	notifier := NewExpiryNotifier(f.store, f.keys, f.broadcaster)

	notifier.handleExpiredKey(f.keys.Participants("ABC123"))
	notifier.handleExpiredKey(f.keys.Participant("conn-1"))
	notifier.handleExpiredKey("test:session:bad!")
	notifier.handleExpiredKey("other:session:ABC123")

	assert.Empty(t, f.broadcaster.events)
}
