package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/cmertens/flashpack/internal/domain"
	"github.com/gorilla/websocket"
)

// packUpdatedMessage is the server->client event sent to every member of
// a pack's channel after a successful mutation.
type packUpdatedMessage struct {
	Type      string       `json:"type"`
	EventType string       `json:"eventType"`
	Pack      *domain.Pack `json:"pack"`
}

type subscription struct {
	client *client
	packID int64
}

type event struct {
	packID int64
	data   []byte
}

type roomQuery struct {
	packID int64
	reply  chan int
}

// Hub is the subscription registry for realtime pack updates. It maps
// each pack id to the set of connections that joined its channel and
// fans broadcast events out to them. All state is owned by the single
// Run goroutine; the exported methods communicate with it over channels,
// so join, leave, and broadcast never race and never block the caller
// for long.
type Hub struct {
	register   chan *client
	unregister chan *client
	join       chan subscription
	leave      chan subscription
	broadcast  chan event
	roomSize   chan roomQuery

	// Owned by Run.
	clients map[*client]struct{}
	rooms   map[int64]map[*client]struct{}
}

// NewHub creates a Hub. Call Run before accepting connections.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		broadcast:  make(chan event, 256),
		roomSize:   make(chan roomQuery),
		clients:    make(map[*client]struct{}),
		rooms:      make(map[int64]map[*client]struct{}),
	}
}

// Run drives the hub's event loop until ctx is cancelled. On shutdown
// every connection is dropped.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case sub := <-h.join:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			room := h.rooms[sub.packID]
			if room == nil {
				room = make(map[*client]struct{})
				h.rooms[sub.packID] = room
			}
			room[sub.client] = struct{}{}

		case sub := <-h.leave:
			h.removeFromRoom(sub.client, sub.packID)

		case ev := <-h.broadcast:
			for c := range h.rooms[ev.packID] {
				select {
				case c.send <- ev.data:
				default:
					// Slow consumer: drop the connection rather than
					// stall the broadcast.
					h.drop(c)
				}
			}

		case q := <-h.roomSize:
			q.reply <- len(h.rooms[q.packID])
		}
	}
}

// PackUpdated implements service.PackNotifier. It is fire-and-forget:
// if the hub's event queue is full the notification is dropped, since
// delivery is best-effort and clients re-fetch on reconnect anyway.
func (h *Hub) PackUpdated(eventType string, pack *domain.Pack) {
	data, err := json.Marshal(packUpdatedMessage{
		Type:      "pack-updated",
		EventType: eventType,
		Pack:      pack,
	})
	if err != nil {
		slog.Error("encode pack update", "packId", pack.ID, "error", err)
		return
	}

	select {
	case h.broadcast <- event{packID: pack.ID, data: data}:
	default:
		slog.Warn("broadcast queue full, dropping pack update", "packId", pack.ID, "event", eventType)
	}
}

// HandleConnection takes ownership of an upgraded WebSocket connection:
// it registers the connection with the hub and starts its read and
// write pumps. The connection speaks the join-pack / leave-pack
// protocol until it closes.
func (h *Hub) HandleConnection(conn *websocket.Conn, userID int64) {
	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
	}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// RoomSize reports how many connections have joined a pack's channel.
func (h *Hub) RoomSize(packID int64) int {
	q := roomQuery{packID: packID, reply: make(chan int, 1)}
	h.roomSize <- q
	return <-q.reply
}

// drop removes the client from every room and closes its send channel,
// which in turn tears down the connection. Caller must be the Run loop.
func (h *Hub) drop(c *client) {
	for packID := range h.rooms {
		h.removeFromRoom(c, packID)
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) removeFromRoom(c *client, packID int64) {
	room, ok := h.rooms[packID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, packID)
	}
}
