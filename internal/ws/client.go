package ws

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type Client struct {
	id     uuid.UUID
	hub    *Hub
	conn   *websocket.Conn
	events map[EventType]bool
	send   chan []byte
}

func newClient(hub *Hub, conn *websocket.Conn, events map[EventType]bool) *Client {
	return &Client{
		id:     uuid.New(),
		hub:    hub,
		conn:   conn,
		events: events,
		send:   make(chan []byte, 256),
	}
}

// wants reports whether the client subscribed to t. No subscription means all events.
func (c *Client) wants(t EventType) bool {
	return c.events == nil || c.events[t]
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
