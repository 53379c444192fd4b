package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	ws "github.com/watchmenow/watchmenow-be/internal/websocket"
)

// WebSocketHandler upgrades connections and attaches them to the film feed.
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
		// Same policy as the CORS defaults: any origin.
		return true
	},
}

// Serve handles the websocket connection request. An optional `type` query
// parameter limits the feed to one film type.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(conn, strings.TrimSpace(r.URL.Query().Get("type")))
	h.hub.Register(client)

	// A failed read means the peer is gone. Unregistering closes Send,
	// which in turn ends WritePump.
	go client.WritePump()
	go func() {
		defer h.hub.Unregister(client)
		client.ReadPump(h.handleIncomingWSMessage)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(client *ws.Client, message []byte) {
	var msg ws.Message
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Error().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
		h.reply(client, ws.NewErrorMessage("Invalid message"))
		return
	}

	switch msg.Action {
	case ws.ActionSubscribe:
		var topic string
		if payload, ok := msg.Payload.(map[string]interface{}); ok {
			topic, _ = payload["type"].(string)
		}
		topic = strings.TrimSpace(topic)
		h.hub.Subscribe(client, topic)
		log.Debug().Str("topic", topic).Msg("Client changed film feed subscription")
		h.reply(client, ws.NewMessage(ws.ActionSubscribe, map[string]string{"type": topic}))

	case ws.ActionPing:
		h.reply(client, ws.NewMessage(ws.ActionPong, nil))

	default:
		log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
		h.reply(client, ws.NewErrorMessage("Unknown action: "+msg.Action))
	}
}

func (h *WebSocketHandler) reply(client *ws.Client, data []byte) {
	if data != nil {
		h.hub.SendTo(client, data)
	}
}
