package websocket

import (
	"github.com/rs/zerolog/log"
	"github.com/watchmenow/watchmenow-be/internal/models"
)

type envelope struct {
	topic string // film type, empty for messages every client gets
	data  []byte
}

type subscription struct {
	client *Client
	topic  string
}

type directMessage struct {
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts film events to them.
type Hub struct {
	// Registered clients mapped to their topic filter ("" receives everything).
	clients map[*Client]string

	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	direct     chan directMessage
	count      chan chan int
	done       chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]string),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		direct:     make(chan directMessage),
		count:      make(chan chan int),
		done:       make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			log.Info().Msg("Websocket hub stopped")
			return
		case client := <-h.register:
			h.clients[client] = client.Topic
			log.Info().Int("total_clients", len(h.clients)).Str("topic", client.Topic).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; ok {
				h.clients[sub.client] = sub.topic
			}
		case reply := <-h.count:
			reply <- len(h.clients)
		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				select {
				case msg.client.Send <- msg.data:
				default:
					h.drop(msg.client)
				}
			}
		case msg := <-h.broadcast:
			for client, topic := range h.clients {
				if msg.topic != "" && topic != "" && topic != msg.topic {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					// Slow consumer.
					h.drop(client)
				}
			}
		}
	}
}

// Stop ends Run and disconnects every client.
func (h *Hub) Stop() {
	close(h.done)
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe restricts a client to the films of one type; an empty topic
// restores the full feed.
func (h *Hub) Subscribe(client *Client, topic string) {
	select {
	case h.subscribe <- subscription{client: client, topic: topic}:
	case <-h.done:
	}
}

// SendTo delivers a message to a single registered client.
func (h *Hub) SendTo(client *Client, data []byte) {
	select {
	case h.direct <- directMessage{client: client, data: data}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients, 0 once the hub stopped.
func (h *Hub) ClientCount() int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Publish queues a film event for delivery. Film payloads only reach clients
// subscribed to their type; anything else goes to every client.
func (h *Hub) Publish(action string, payload interface{}) {
	data := NewMessage(action, payload)
	if data == nil {
		return
	}

	var topic string
	if film, ok := payload.(models.Film); ok {
		topic = film.Type
	}

	select {
	case h.broadcast <- envelope{topic: topic, data: data}:
	default:
		log.Warn().Str("action", action).Msg("Websocket broadcast queue full, dropping event")
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
}
