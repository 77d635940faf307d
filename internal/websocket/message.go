package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Actions exchanged over the change feed.
const (
	ActionNotesChanged = "notes.changed"
	ActionPing         = "ping"
	ActionPong         = "pong"
	ActionError        = "error"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// NotesChangedPayload tells a client which notes to refetch via the delta
// endpoint.
type NotesChangedPayload struct {
	IDs        []string `json:"ids"`
	ServerTime int64    `json:"serverTime"`
}

// NewNotesChangedMessage creates a notes.changed message.
func NewNotesChangedMessage(ids []string, serverTime int64) []byte {
	return encode(Message{
		Action:  ActionNotesChanged,
		Payload: NotesChangedPayload{IDs: ids, ServerTime: serverTime},
	})
}

// NewPongMessage answers a client ping.
func NewPongMessage() []byte {
	return encode(Message{Action: ActionPong})
}

// NewErrorMessage creates an error message.
func NewErrorMessage(errorMsg string) []byte {
	return encode(Message{
		Action:  ActionError,
		Payload: map[string]string{"error": errorMsg},
	})
}

func encode(msg Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("action", msg.Action).Msg("Failed to encode websocket message")
		return nil
	}
	return data
}
