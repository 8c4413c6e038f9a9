package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrUnknownClient = errors.New("unknown client")

// FrameHandler receives every parsed-off-the-wire frame and every transport
// close. The server loop implements it.
type FrameHandler interface {
	HandleFrame(c *Client, frame []byte)
	HandleClose(c *Client)
}

type disconnectedConn struct {
	client *Client
	at     time.Time
}

// Hub is the connection registry: active clients by clientID plus a
// secondary registry of recently disconnected ones, kept for the connection
// grace period.
type Hub struct {
	mu           sync.RWMutex
	active       map[string]*Client
	disconnected map[string]disconnectedConn
	handler      FrameHandler
	log          *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		active:       make(map[string]*Client),
		disconnected: make(map[string]disconnectedConn),
		log:          log,
	}
}

// SetHandler wires the frame handler. Must be called before Register.
func (h *Hub) SetHandler(handler FrameHandler) {
	h.handler = handler
}

// Register allocates a fresh clientID for an accepted transport, stores the
// connection in the active registry and starts its pumps.
func (h *Hub) Register(conn *websocket.Conn, pingInterval, writeTimeout time.Duration) *Client {
	client := &Client{
		conn:         conn,
		clientID:     uuid.New().String(),
		hub:          h,
		send:         make(chan []byte, sendBufferSize),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		connectedAt:  time.Now(),
		log:          h.log,
	}

	h.mu.Lock()
	h.active[client.clientID] = client
	h.mu.Unlock()

	h.log.Info("client connected", zap.String("client_id", client.clientID))

	go client.writePump()
	go client.readPump()
	return client
}

// BindPlayer associates a player identity with an active connection.
func (h *Hub) BindPlayer(clientID, playerID, playerName string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.active[clientID]
	if !ok {
		return ErrUnknownClient
	}
	client.setPlayer(playerID, playerName)
	return nil
}

// UnbindPlayer clears the player binding on an active connection. Used when
// another connection takes over the player, so the old transport's close is
// not mistaken for the player disconnecting.
func (h *Hub) UnbindPlayer(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.active[clientID]; ok {
		client.setPlayer("", "")
	}
}

// Get returns the active connection for a clientID.
func (h *Hub) Get(clientID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.active[clientID]
	return client, ok
}

// PlayerClient returns the active connection bound to a playerID.
func (h *Hub) PlayerClient(playerID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.active {
		if client.PlayerID() == playerID {
			return client, true
		}
	}
	return nil, false
}

// MarkDisconnected moves a connection from the active to the disconnected
// registry and closes its transport. Idempotent.
func (h *Hub) MarkDisconnected(clientID string, now time.Time) {
	h.mu.Lock()
	client, ok := h.active[clientID]
	if ok {
		delete(h.active, clientID)
		h.disconnected[clientID] = disconnectedConn{client: client, at: now}
	}
	h.mu.Unlock()

	if ok {
		client.close()
		h.log.Info("client disconnected", zap.String("client_id", clientID))
	}
}

// Reclaim promotes a disconnected connection back to active. Rarely used;
// the typical reconnection keeps the playerID and arrives on a fresh
// clientID.
func (h *Hub) Reclaim(clientID string) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.disconnected[clientID]
	if !ok {
		return nil, false
	}
	delete(h.disconnected, clientID)
	h.active[clientID] = entry.client
	return entry.client, true
}

// Purge drops disconnected entries older than the grace period. Idempotent
// for a fixed (now, grace). Returns the number of entries dropped.
func (h *Hub) Purge(now time.Time, grace time.Duration) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	purged := 0
	for id, entry := range h.disconnected {
		if now.Sub(entry.at) > grace {
			delete(h.disconnected, id)
			purged++
		}
	}
	return purged
}

// Broadcast sends a frame to every active connection. The client list is
// copied under the lock and sends happen outside it, so one slow client never
// stalls the rest. Clients whose buffers are full are disconnected.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.active))
	for _, client := range h.active {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	now := time.Now()
	for _, client := range clients {
		if !client.Send(data) {
			h.log.Warn("dropping client with full send buffer",
				zap.String("client_id", client.clientID))
			h.MarkDisconnected(client.clientID, now)
		}
	}
}

// SendToClient sends a frame to one active connection. Returns false when the
// client is unknown or could not accept the frame.
func (h *Hub) SendToClient(clientID string, data []byte) bool {
	client, ok := h.Get(clientID)
	if !ok {
		return false
	}
	if !client.Send(data) {
		h.MarkDisconnected(clientID, time.Now())
		return false
	}
	return true
}

// ActiveCount returns the number of active connections.
func (h *Hub) ActiveCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// CloseAll tears down every connection, active and disconnected. Used on
// shutdown after the farewell broadcast.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.active)+len(h.disconnected))
	for _, client := range h.active {
		clients = append(clients, client)
	}
	for _, entry := range h.disconnected {
		clients = append(clients, entry.client)
	}
	h.active = make(map[string]*Client)
	h.disconnected = make(map[string]disconnectedConn)
	h.mu.Unlock()

	for _, client := range clients {
		client.close()
	}
}

// handleFrame forwards a frame to the configured handler.
func (h *Hub) handleFrame(c *Client, frame []byte) {
	if h.handler != nil {
		h.handler.HandleFrame(c, frame)
	}
}

// connectionClosed reports a transport close observed by a read pump.
func (h *Hub) connectionClosed(c *Client) {
	if h.handler != nil {
		h.handler.HandleClose(c)
	}
}
