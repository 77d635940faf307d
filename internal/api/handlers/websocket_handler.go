package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/isdelr/notesync-be/internal/auth"
	ws "github.com/isdelr/notesync-be/internal/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// WebSocketHandler upgrades authenticated requests to the note change feed.
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
		// Connections are authenticated by token, not cookies.
		return true
	},
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Authentication credentials were not provided")
		return
	}

	logger := hlog.FromRequest(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, user.ID)
	if !h.hub.Add(client) {
		logger.Warn().Str("user_id", user.ID).Msg("Hub stopped, closing websocket connection")
		conn.Close()
		return
	}
	logger.Debug().Str("user_id", user.ID).Msg("Websocket client connected")

	go client.WritePump()
	go client.ReadPump(func(c *ws.Client, message []byte) {
		h.handleIncomingWSMessage(logger, c, message)
	})
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(logger *zerolog.Logger, client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		return
	}

	var reply []byte
	switch msg.Action {
	case ws.ActionPing:
		reply = ws.NewPongMessage()
	default:
		logger.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		reply = ws.NewErrorMessage("Unknown action: " + msg.Action)
	}

	h.hub.Reply(client, reply)
}
