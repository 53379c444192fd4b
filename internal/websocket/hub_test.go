package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/watchmenow/watchmenow-be/internal/models"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func testClient(topic string, buffer int) *Client {
	return &Client{Send: make(chan []byte, buffer), Topic: topic}
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected message %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_PublishFilm(t *testing.T) {
	hub := startHub(t)
	all := testClient("", 4)
	scifi := testClient("scifi", 4)
	crime := testClient("crime", 4)
	for _, c := range []*Client{all, scifi, crime} {
		hub.Register(c)
	}

	hub.Publish("film.created", models.Film{Title: "Dune", Type: "scifi"})

	msg := receive(t, all)
	assert.Equal(t, "film.created", msg.Action)
	payload, ok := msg.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Dune", payload["title"])

	assert.Equal(t, "film.created", receive(t, scifi).Action)
	assertNothing(t, crime)
}

func TestHub_NonFilmPayloadReachesEveryone(t *testing.T) {
	hub := startHub(t)
	scifi := testClient("scifi", 4)
	crime := testClient("crime", 4)
	hub.Register(scifi)
	hub.Register(crime)

	hub.Publish("film.deleted", map[string]string{"title": "Dune"})

	assert.Equal(t, "film.deleted", receive(t, scifi).Action)
	assert.Equal(t, "film.deleted", receive(t, crime).Action)
}

func TestHub_Subscribe(t *testing.T) {
	hub := startHub(t)
	c := testClient("", 4)
	hub.Register(c)
	hub.Subscribe(c, "crime")

	hub.Publish("film.updated", models.Film{Title: "Dune", Type: "scifi"})
	hub.Publish("film.updated", models.Film{Title: "Heat", Type: "crime"})

	msg := receive(t, c)
	payload := msg.Payload.(map[string]interface{})
	assert.Equal(t, "Heat", payload["title"])
	assertNothing(t, c)
}

func TestHub_SendTo(t *testing.T) {
	hub := startHub(t)
	a := testClient("", 4)
	b := testClient("", 4)
	hub.Register(a)
	hub.Register(b)

	hub.SendTo(a, NewMessage(ActionPong, nil))

	assert.Equal(t, ActionPong, receive(t, a).Action)
	assertNothing(t, b)

	// Unknown clients are ignored.
	hub.SendTo(testClient("", 1), NewMessage(ActionPong, nil))
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := testClient("", 1)
	hub.Register(c)
	hub.Unregister(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := startHub(t)
	assert.Equal(t, 0, hub.ClientCount())

	a, b := testClient("", 1), testClient("scifi", 1)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Unregister(a)
	assert.Equal(t, 1, hub.ClientCount())

	// Unregistering twice is harmless.
	hub.Unregister(a)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := testClient("", 1)
	hub.Register(slow)

	hub.Publish("film.created", models.Film{Title: "A", Type: "x"})
	hub.Publish("film.created", models.Film{Title: "B", Type: "x"})
	// Let the hub work through both events before draining.
	time.Sleep(100 * time.Millisecond)

	// The first message was buffered, then the channel is closed.
	deadline := time.After(time.Second)
	received := 0
	for {
		select {
		case _, ok := <-slow.Send:
			if !ok {
				assert.Equal(t, 1, received)
				return
			}
			received++
		case <-deadline:
			t.Fatal("slow client was not dropped")
		}
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := testClient("", 1)
	hub.Register(c)
	hub.Stop()

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed on stop")
	}

	// Calls after Stop must not block.
	hub.Unregister(c)
	hub.Subscribe(c, "x")
	assert.Equal(t, 0, hub.ClientCount())
	late := testClient("", 1)
	hub.Register(late)
	_, ok := <-late.Send
	assert.False(t, ok)
}
