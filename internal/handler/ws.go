package handler

import (
	"log/slog"
	"net/http"

	"github.com/cmertens/flashpack/internal/realtime"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades authenticated connections and hands them to the
// realtime hub.
type WSHandler struct {
	hub      *realtime.Hub
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler. allowedOrigin restricts upgrade
// requests to the configured SPA origin; empty allows same-origin only.
func NewWSHandler(hub *realtime.Hub, allowedOrigin string) *WSHandler {
	return &WSHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				return origin == allowedOrigin || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
	}
}

// HandleConnect upgrades the request to a WebSocket connection speaking
// the join-pack / leave-pack protocol.
// GET /api/ws
func (h *WSHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade", "error", err)
		return
	}

	slog.Info("websocket client connected", "userId", user.ID)
	h.hub.HandleConnection(conn, user.ID)
}
