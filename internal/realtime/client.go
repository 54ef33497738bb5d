package realtime

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Join/leave messages are tiny; anything bigger is a protocol error.
	maxMessageSize = 512

	// Outbound queue per connection. A client that falls this far
	// behind is dropped by the hub.
	sendBufferSize = 32
)

// clientMessage is the client->server protocol: join or leave a pack's
// channel. Membership is per-connection and never persisted.
type clientMessage struct {
	Type   string `json:"type"`
	PackID int64  `json:"packId"`
}

const (
	messageJoinPack  = "join-pack"
	messageLeavePack = "leave-pack"
)

// client is one WebSocket connection's view of the hub.
type client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID int64
}

// readPump reads join/leave messages from the connection until it
// closes, then unregisters the client. There is at most one reader per
// connection.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "userId", c.userID, "error", err)
			}
			return
		}

		if msg.PackID == 0 {
			continue
		}

		switch msg.Type {
		case messageJoinPack:
			c.hub.join <- subscription{client: c, packID: msg.PackID}
		case messageLeavePack:
			c.hub.leave <- subscription{client: c, packID: msg.PackID}
		default:
			// Unknown message types are ignored, not fatal.
		}
	}
}

// writePump forwards broadcast messages from the hub to the connection
// and keeps it alive with pings. There is at most one writer per
// connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped this client.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					slog.Debug("websocket write error", "userId", c.userID, "error", err)
				}
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
