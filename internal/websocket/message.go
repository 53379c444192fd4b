package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}

// Actions understood from clients.
const (
	ActionSubscribe = "subscribe"
	ActionPing      = "ping"
	ActionPong      = "pong"
	ActionError     = "error"
)

// NewMessage encodes an outbound message.
func NewMessage(action string, payload interface{}) []byte {
	data, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket message")
		return nil
	}
	return data
}

// NewErrorMessage encodes an error reply for a client.
func NewErrorMessage(msg string) []byte {
	return NewMessage(ActionError, map[string]string{"error": msg})
}
