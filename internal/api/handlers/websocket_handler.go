package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	ws "github.com/avendel/worldvault/internal/websocket"
)

// WebSocketHandler handles upgrading HTTP connections to WebSocket
// connections. Connected clients receive the event stream: backup results,
// eviction reports and budget warnings.
type WebSocketHandler struct {
	hub *ws.Hub
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (consider tightening this in production).
		return true
	},
}

// Serve handles the WebSocket connection request. Supports both
// /ws (everything) and /ws/worlds/{name} (single world) routes.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	scope := chi.URLParam(r, "name")
	if scope == "" {
		scope = ws.GlobalScope
	}

	client := ws.NewClient(h.hub, conn, scope)
	h.hub.Register <- client

	go client.WritePump()
	go func() {
		// ReadPump returns when the client goes away.
		client.ReadPump(h.handleIncomingMessage)
		h.hub.Unregister <- client
	}()
}

// handleIncomingMessage processes messages received from a websocket client.
// Clients only consume the event stream; anything they send back is answered
// with an error message.
func (h *WebSocketHandler) handleIncomingMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		client.Send <- ws.NewErrorMessage("Malformed message")
		return
	}

	log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
	client.Send <- ws.NewErrorMessage("Unknown action: " + msg.Action)
}
