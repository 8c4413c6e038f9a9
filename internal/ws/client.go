package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client wraps one WebSocket connection. Outgoing frames go through a bounded
// send channel drained by writePump; a client that cannot keep up is
// disconnected instead of queueing without limit.
type Client struct {
	conn         *websocket.Conn
	clientID     string
	hub          *Hub
	send         chan []byte
	pingInterval time.Duration
	writeTimeout time.Duration
	connectedAt  time.Time
	log          *zap.Logger

	mu           sync.Mutex
	closed       bool
	playerID     string
	playerName   string
	lastActivity time.Time
}

const (
	sendBufferSize = 256
	maxFrameSize   = 65536
)

// ClientID returns the opaque connection ID assigned at registration.
func (c *Client) ClientID() string { return c.clientID }

// PlayerID returns the bound player ID, or "" while the connection is
// unbound.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// PlayerName returns the display name recorded on the connection.
func (c *Client) PlayerName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerName
}

func (c *Client) setPlayer(playerID, playerName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
	c.playerName = playerName
}

func (c *Client) touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = now
}

// Send enqueues a frame for delivery. Returns false when the client is closed
// or its buffer is full; the caller decides whether that disconnects it.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// close shuts the send channel exactly once and closes the transport.
func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
	c.conn.Close()
}

// readPump reads frames until the transport closes and hands each one to the
// hub's frame handler. Runs as the connection's single reader goroutine, so
// frames from one client are processed in arrival order.
func (c *Client) readPump() {
	defer func() {
		c.hub.connectionClosed(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	pongWait := 2 * c.pingInterval
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error",
					zap.String("client_id", c.clientID),
					zap.Error(err))
			}
			break
		}

		c.touch(time.Now())
		c.hub.handleFrame(c, message)
	}
}

// writePump drains the send channel and keeps the connection alive with
// periodic pings. Every write carries a bounded deadline.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				// Channel closed; connection is being torn down.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn("websocket write error",
					zap.String("client_id", c.clientID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn("websocket ping error",
					zap.String("client_id", c.clientID),
					zap.Error(err))
				return
			}
		}
	}
}
