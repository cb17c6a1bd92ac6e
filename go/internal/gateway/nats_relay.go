package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// RelayConfig holds configuration for the NATS room relay
type RelayConfig struct {
	URL           string
	SubjectPrefix string // e.g., "dinner.rooms"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultRelayConfig returns default relay configuration
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "dinner.rooms",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// relayEnvelope carries an encoded frame between gateway instances
type relayEnvelope struct {
	Room     string          `json:"room"`
	Event    EventName       `json:"event"`
	ExceptID string          `json:"except,omitempty"`
	Frame    json.RawMessage `json:"frame"`
}

// NATSRelay publishes room broadcasts on NATS so every gateway instance
// delivers them to its own connections.
type NATSRelay struct {
	connectionManager *ConnectionManager
	nc                *nats.Conn
	sub               *nats.Subscription
	clock             clockwork.Clock
	config            RelayConfig
}

// NewNATSRelay connects to NATS and returns a relay for cm
func NewNATSRelay(cm *ConnectionManager, config RelayConfig, clock clockwork.Clock) (*NATSRelay, error) {
	opts := []nats.Option{
		nats.Name("dinnerpick-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return newNATSRelay(cm, nc, config, clock), nil
}

func newNATSRelay(cm *ConnectionManager, nc *nats.Conn, config RelayConfig, clock clockwork.Clock) *NATSRelay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NATSRelay{
		connectionManager: cm,
		nc:                nc,
		clock:             clock,
		config:            config,
	}
}

var _ Broadcaster = (*NATSRelay)(nil)

// Start subscribes to every room subject
func (r *NATSRelay) Start() error {
	subject := r.config.SubjectPrefix + ".>"
	sub, err := r.nc.Subscribe(subject, func(msg *nats.Msg) {
		if err := r.handleMessage(msg.Data); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to process relayed frame")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	r.sub = sub
	log.Info().Str("subject", subject).Msg("room relay subscribed")
	return nil
}

// Stop drains the subscription and closes the connection
func (r *NATSRelay) Stop() error {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("failed to unsubscribe room relay")
		}
	}
	if err := r.nc.Drain(); err != nil {
		r.nc.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}

// Connected reports whether the NATS connection is up
func (r *NATSRelay) Connected() bool {
	return r.nc != nil && r.nc.IsConnected()
}

// BroadcastToRoom publishes event for room. If the publish fails the frame
// is still delivered to this instance's connections.
func (r *NATSRelay) BroadcastToRoom(room string, event ServerEvent, exceptID string) {
	frame, err := EncodeEvent(event, r.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("failed to encode event for relay")
		return
	}
	message := BroadcastMessage{Room: room, Event: event.EventName(), Payload: frame, ExceptID: exceptID}

	data, err := json.Marshal(relayEnvelope{Room: room, Event: message.Event, ExceptID: exceptID, Frame: frame})
	if err == nil {
		err = r.nc.Publish(r.subject(room), data)
	}
	if err != nil {
		log.Warn().Err(err).Str("room", room).Str("event", string(message.Event)).Msg("relay publish failed, delivering locally")
		r.connectionManager.BroadcastEncoded(message)
	}
}

func (r *NATSRelay) handleMessage(data []byte) error {
	var envelope relayEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("unmarshal relay envelope: %w", err)
	}
	if envelope.Room == "" || len(envelope.Frame) == 0 {
		return fmt.Errorf("relay envelope missing room or frame")
	}
	r.connectionManager.BroadcastEncoded(BroadcastMessage{
		Room:     envelope.Room,
		Event:    envelope.Event,
		Payload:  envelope.Frame,
		ExceptID: envelope.ExceptID,
	})
	return nil
}

func (r *NATSRelay) subject(room string) string {
	return strings.TrimSuffix(r.config.SubjectPrefix, ".") + "." + room
}
