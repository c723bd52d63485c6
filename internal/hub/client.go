package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatmesh/server/internal/config"
	"github.com/chatmesh/server/internal/domain"
	"github.com/chatmesh/server/pkg/log"
)

// Client is one live websocket connection.
type Client struct {
	ID      string
	Hub     *Hub
	Conn    *websocket.Conn
	Send    chan []byte
	Session *domain.Session
	config  config.WebSocketConfig

	mu     sync.Mutex
	closed bool
}

func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:      id,
		Hub:     hub,
		Conn:    conn,
		Send:    make(chan []byte, 256),
		Session: domain.NewSession(id),
		config:  cfg,
	}
}

// ReadPump reads client events until the connection drops, then takes
// the client through unregister. Runs as its own goroutine.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.L().Debug().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			break
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump drains the send queue to the socket and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent marshals and queues one event for this client. Events for a
// closed or saturated connection are dropped; room broadcasts do not
// target an individual connection, so absence is not an error.
//
// Presence watches hold client references outside the hub's room maps,
// so an event can arrive after the client was unregistered. The closed
// flag keeps that late send from hitting the closed Send channel.
func (c *Client) SendEvent(event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	select {
	case c.Send <- data:
	default:
	}
	return nil
}

// closeSend marks the client closed and closes the send queue. Safe to
// call more than once.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
