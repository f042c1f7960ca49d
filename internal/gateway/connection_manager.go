package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/typerace/internal/race/events"
)

// MessageHandler receives inbound traffic from managed connections.
type MessageHandler interface {
	HandleClientMessage(ctx context.Context, conn *Connection, data []byte)
	HandleDisconnect(connID string)
}

// ConnectionManager owns every websocket connection and implements the
// per-session publish/subscribe topics the race engine broadcasts through.
// Connections are indexed by connection ID; a session's topic holds exactly
// its participants and exists only between session creation and destruction.
type ConnectionManager struct {
	connections  map[string]*Connection
	sessionConns map[uuid.UUID]map[string]*Connection
	mu           sync.RWMutex

	handler MessageHandler

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig

	// Event broadcasting
	broadcastCh chan BroadcastMessage
}

// Connection represents a WebSocket connection to a client.
type Connection struct {
	ID      string
	UserID  uuid.UUID
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	// Connection metadata
	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// BroadcastMessage represents a message to deliver to connections. Targets
// are resolved when the message is enqueued, not when it is drained, so a
// session teardown right after a broadcast cannot drop an in-flight result.
type BroadcastMessage struct {
	SessionID uuid.UUID // session the event belongs to, zero for direct sends
	ConnIDs   []string  // resolved delivery targets
	Event     events.Event
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections:  make(map[string]*Connection),
		sessionConns: make(map[uuid.UUID]map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for high throughput
	}
}

// SetHandler wires the inbound message handler. Must be called before any
// connection is accepted.
func (cm *ConnectionManager) SetHandler(h MessageHandler) {
	cm.handler = h
}

// Start begins processing broadcast messages.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, userID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("user_id", userID.String()).
		Msg("WebSocket connection established")

	return nil
}

// registerConnection adds a connection to the manager.
func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection from the manager and from any
// session topic it still belongs to, then notifies the handler.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.connections[conn.ID]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn.ID)
	for sessionID, conns := range cm.sessionConns {
		if _, ok := conns[conn.ID]; ok {
			delete(conns, conn.ID)
			if len(conns) == 0 {
				delete(cm.sessionConns, sessionID)
			}
		}
	}
	close(conn.Send)
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", conn.UserID.String()).
		Msg("connection unregistered")

	if cm.handler != nil {
		cm.handler.HandleDisconnect(conn.ID)
	}
}

// Subscribe attaches the given connections to a session topic.
func (cm *ConnectionManager) Subscribe(sessionID uuid.UUID, connIDs []string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pool := make(map[string]*Connection, len(connIDs))
	for _, id := range connIDs {
		if conn, ok := cm.connections[id]; ok {
			pool[id] = conn
		}
	}
	cm.sessionConns[sessionID] = pool

	log.Debug().
		Str("session_id", sessionID.String()).
		Int("subscribers", len(pool)).
		Msg("session topic created")
}

// Unsubscribe tears down a session topic.
func (cm *ConnectionManager) Unsubscribe(sessionID uuid.UUID) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.sessionConns, sessionID)
}

// sessionTargets resolves a session topic into concrete connection IDs,
// skipping exceptConnID.
func (cm *ConnectionManager) sessionTargets(sessionID uuid.UUID, exceptConnID string) []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	var ids []string
	for id := range cm.sessionConns[sessionID] {
		if id == exceptConnID {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// BroadcastToSession sends an event to every subscriber of a session topic.
func (cm *ConnectionManager) BroadcastToSession(sessionID uuid.UUID, event events.Event) {
	cm.enqueueBroadcast(BroadcastMessage{
		SessionID: sessionID,
		ConnIDs:   cm.sessionTargets(sessionID, ""),
		Event:     event,
	})
}

// BroadcastToSessionExcept sends an event to every subscriber of a session
// topic except the named connection; used to relay progress without echoing
// it back to the sender.
func (cm *ConnectionManager) BroadcastToSessionExcept(sessionID uuid.UUID, exceptConnID string, event events.Event) {
	cm.enqueueBroadcast(BroadcastMessage{
		SessionID: sessionID,
		ConnIDs:   cm.sessionTargets(sessionID, exceptConnID),
		Event:     event,
	})
}

// SendToConn sends an event to a single connection.
func (cm *ConnectionManager) SendToConn(connID string, event events.Event) {
	cm.enqueueBroadcast(BroadcastMessage{ConnIDs: []string{connID}, Event: event})
}

func (cm *ConnectionManager) enqueueBroadcast(message BroadcastMessage) {
	if len(message.ConnIDs) == 0 {
		return
	}
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().
			Str("event_type", string(message.Event.Type)).
			Msg("broadcast channel full, dropping message")
	}
}

// handleBroadcast processes a broadcast message.
func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	cm.mu.RLock()
	// Create a snapshot of target connections to avoid holding the lock
	// during delivery.
	var targets []*Connection
	for _, id := range message.ConnIDs {
		if conn, ok := cm.connections[id]; ok {
			targets = append(targets, conn)
		}
	}
	cm.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	// Marshal the event once
	eventData, err := json.Marshal(message.Event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	for _, conn := range targets {
		select {
		case conn.Send <- eventData:
		default:
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Str("user_id", conn.UserID.String()).
				Msg("connection send buffer full, closing connection")
			cm.unregisterConnection(conn)
			conn.Conn.Close()
		}
	}

	log.Debug().
		Str("event_type", string(message.Event.Type)).
		Int("connections", len(targets)).
		Msg("event delivered")
}

// ConnectionStats summarizes the manager's live state.
type ConnectionStats struct {
	TotalConnections int `json:"total_connections"`
	ActiveSessions   int `json:"active_sessions"`
}

// GetConnectionStats returns statistics about active connections.
func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return ConnectionStats{
		TotalConnections: len(cm.connections),
		ActiveSessions:   len(cm.sessionConns),
	}
}

// writePump handles sending messages to the WebSocket connection.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection.
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		if c.Manager.handler != nil {
			c.Manager.handler.HandleClientMessage(context.Background(), c, message)
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
