package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Dispatcher receives the traffic of every connection. HandleMessage is
// called sequentially per connection, in arrival order.
type Dispatcher interface {
	HandleMessage(ctx context.Context, client Client, message []byte)
	HandleDisconnect(ctx context.Context, client Client)
}

// Broadcaster delivers server events to every connection in a room.
type Broadcaster interface {
	BroadcastToRoom(room string, event ServerEvent, exceptID string)
}

// Client is the handler's view of one connection
type Client interface {
	ID() string
	Room() string
	JoinRoom(room string)
	LeaveRoom()
	Reply(ackID string, ack Ack)
}

// ConnectionManager manages WebSocket connections grouped into rooms by session code
type ConnectionManager struct {
	connections map[*Connection]bool
	rooms       map[string]map[*Connection]bool
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	config     ConnectionConfig
	clock      clockwork.Clock
	dispatcher Dispatcher
	baseCtx    context.Context

	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	id      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	mu      sync.Mutex
	room    string
	closed  bool
	dropped bool

	// Connection metadata
	ConnectedAt time.Time
	LastPing    time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

const disconnectTimeout = 5 * time.Second

// BroadcastMessage is an encoded frame queued for a room
type BroadcastMessage struct {
	Room     string
	Event    EventName
	Payload  []byte
	ExceptID string // Optional: connection that should not receive the frame
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  8 * 1024, // 50 option ids fit comfortably
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// Origins are enforced by the CORS layer in front of the mux
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		connections: make(map[*Connection]bool),
		rooms:       make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		baseCtx:     context.Background(),
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for high throughput
	}
}

// SetDispatcher wires the handler that processes inbound frames.
func (cm *ConnectionManager) SetDispatcher(d Dispatcher) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.dispatcher = d
}

// Start begins processing broadcast messages
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.mu.Lock()
	cm.baseCtx = ctx
	cm.mu.Unlock()

	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (*Connection, error) {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the client
		return nil, err
	}

	now := cm.clock.Now()
	connection := &Connection{
		id:          uuid.NewString(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: now,
		LastPing:    now,
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.id).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return connection, nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[conn] = true
}

// unregisterConnection removes a connection from the manager and its room.
// It reports whether this call did the removal.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	if !cm.connections[conn] {
		cm.mu.Unlock()
		return false
	}
	delete(cm.connections, conn)
	cm.removeFromRoomLocked(conn, conn.Room())
	cm.mu.Unlock()

	conn.closeSend()
	log.Info().Str("connection_id", conn.id).Msg("connection unregistered")
	return true
}

func (cm *ConnectionManager) joinRoom(conn *Connection, room string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.removeFromRoomLocked(conn, conn.setRoom(room))
	if !cm.connections[conn] {
		return
	}
	if cm.rooms[room] == nil {
		cm.rooms[room] = make(map[*Connection]bool)
	}
	cm.rooms[room][conn] = true

	log.Debug().
		Str("connection_id", conn.id).
		Str("room", room).
		Int("room_connections", len(cm.rooms[room])).
		Msg("connection joined room")
}

func (cm *ConnectionManager) leaveRoom(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.removeFromRoomLocked(conn, conn.setRoom(""))
}

func (cm *ConnectionManager) removeFromRoomLocked(conn *Connection, room string) {
	if room == "" {
		return
	}
	if connections, exists := cm.rooms[room]; exists {
		delete(connections, conn)
		// Clean up empty rooms
		if len(connections) == 0 {
			delete(cm.rooms, room)
		}
	}
}

// BroadcastToRoom encodes event once and queues it for every connection in room
func (cm *ConnectionManager) BroadcastToRoom(room string, event ServerEvent, exceptID string) {
	payload, err := EncodeEvent(event, cm.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("failed to encode event for broadcast")
		return
	}
	cm.BroadcastEncoded(BroadcastMessage{Room: room, Event: event.EventName(), Payload: payload, ExceptID: exceptID})
}

// BroadcastEncoded queues an already encoded frame
func (cm *ConnectionManager) BroadcastEncoded(message BroadcastMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().Str("room", message.Room).Str("event", string(message.Event)).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	connections, exists := cm.rooms[message.Room]
	if !exists {
		cm.mu.RUnlock()
		return
	}

	// Snapshot so the lock is not held while sending
	targets := make([]*Connection, 0, len(connections))
	for conn := range connections {
		if message.ExceptID != "" && conn.id == message.ExceptID {
			continue
		}
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		conn.enqueue(message.Payload)
	}

	log.Debug().
		Str("event", string(message.Event)).
		Str("room", message.Room).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	all := make([]*Connection, 0, len(cm.connections))
	for conn := range cm.connections {
		all = append(all, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		_ = conn.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			cm.clock.Now().Add(time.Second))
		_ = conn.Conn.Close()
	}
}

func (cm *ConnectionManager) context() context.Context {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.baseCtx
}

// disconnectContext is detached from shutdown so sockets closed by closeAll
// still clear their presence.
func (cm *ConnectionManager) disconnectContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(cm.context()), disconnectTimeout)
}

func (cm *ConnectionManager) currentDispatcher() Dispatcher {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.dispatcher
}

// ConnectionStats summarises active connections
type ConnectionStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomConnections  map[string]int `json:"room_connections"`
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	roomCounts := make(map[string]int, len(cm.rooms))
	for room, connections := range cm.rooms {
		roomCounts[room] = len(connections)
	}

	return ConnectionStats{
		TotalConnections: len(cm.connections),
		ActiveRooms:      len(cm.rooms),
		RoomConnections:  roomCounts,
	}
}

func (c *Connection) ID() string { return c.id }

func (c *Connection) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *Connection) JoinRoom(room string) { c.Manager.joinRoom(c, room) }

func (c *Connection) LeaveRoom() { c.Manager.leaveRoom(c) }

// Reply sends an acknowledgement directly to this connection
func (c *Connection) Reply(ackID string, ack Ack) {
	payload, err := EncodeAck(ackID, ack, c.Manager.clock.Now())
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.id).Msg("failed to encode ack")
		return
	}
	c.enqueue(payload)
}

func (c *Connection) setRoom(room string) (previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous, c.room = c.room, room
	return previous
}

// enqueue hands a frame to the write pump. A connection whose buffer is
// full has its socket closed; readPump then runs the disconnect path.
func (c *Connection) enqueue(payload []byte) {
	c.mu.Lock()
	if c.closed || c.dropped {
		c.mu.Unlock()
		return
	}
	select {
	case c.Send <- payload:
		c.mu.Unlock()
	default:
		c.dropped = true
		c.mu.Unlock()
		log.Warn().Str("connection_id", c.id).Msg("connection send buffer full, closing connection")
		_ = c.Conn.Close()
	}
}

func (c *Connection) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := c.Manager.clock.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.Chan():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.id).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads frames and hands them to the dispatcher one at a time.
// When the socket closes the dispatcher is told about the disconnect.
func (c *Connection) readPump() {
	defer func() {
		if c.Manager.unregisterConnection(c) {
			if d := c.Manager.currentDispatcher(); d != nil {
				ctx, cancel := c.Manager.disconnectContext()
				d.HandleDisconnect(ctx, c)
				cancel()
			}
		}
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.mu.Lock()
		c.LastPing = c.Manager.clock.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().
					Err(err).
					Str("connection_id", c.id).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if d := c.Manager.currentDispatcher(); d != nil {
			d.HandleMessage(c.Manager.context(), c, message)
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
