package gateway

import (
	"context"
	"fmt"

	"github.com/mcdev12/dinnerpick/go/internal/store"
	"github.com/rs/zerolog/log"
)

// ExpiryReasonInactivity is sent when a session's keys time out.
const ExpiryReasonInactivity = "inactivity"

// ExpiryReasonEnded is sent when a session is ended explicitly.
const ExpiryReasonEnded = "ended"

// ExpirySource delivers the names of keys the store has expired
type ExpirySource interface {
	SubscribeExpired(ctx context.Context) (<-chan string, error)
}

// ExpiryNotifier tells a room that its session timed out
type ExpiryNotifier struct {
	source      ExpirySource
	keys        store.Keyspace
	broadcaster Broadcaster
}

// NewExpiryNotifier creates an ExpiryNotifier
func NewExpiryNotifier(source ExpirySource, keys store.Keyspace, broadcaster Broadcaster) *ExpiryNotifier {
	return &ExpiryNotifier{
		source:      source,
		keys:        keys,
		broadcaster: broadcaster,
	}
}

// Run consumes expiry notifications until ctx is cancelled or the source
// closes its channel.
func (n *ExpiryNotifier) Run(ctx context.Context) error {
	expired, err := n.source.SubscribeExpired(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to expired keys: %w", err)
	}

	log.Info().Msg("expiry notifier started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case key, ok := <-expired:
			if !ok {
				log.Info().Msg("expiry notifications closed")
				return nil
			}
			n.handleExpiredKey(key)
		}
	}
}

func (n *ExpiryNotifier) handleExpiredKey(key string) {
	code, ok, err := n.keys.ParseSessionKey(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("ignoring malformed expired key")
		return
	}
	if !ok {
		return
	}

	log.Info().Str("session_code", code).Msg("session expired from inactivity")
	n.broadcaster.BroadcastToRoom(code, SessionExpired{Reason: ExpiryReasonInactivity}, "")
}
