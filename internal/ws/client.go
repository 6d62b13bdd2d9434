package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"onetalk/internal/realtime"
)

type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	sessionID string
	profileID string
	send      chan []byte

	mu     sync.Mutex
	closed bool
	once   sync.Once
}

func newClient(h *Hub, sessionID, profileID string, conn *websocket.Conn) *Client {
	return &Client{conn: conn, hub: h, sessionID: sessionID, profileID: profileID, send: make(chan []byte, 256)}
}

func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// readPump accepts broadcast frames from the client and re-broadcasts them to
// the room with the sender stamped from the authenticated profile.
func (c *Client) readPump() {
	defer c.Close()
	c.conn.SetReadLimit(8 * 1024)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ev realtime.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type != realtime.TypeBroadcast || !realtime.ValidBroadcast(ev.Event) {
			continue
		}
		ev.SessionID = c.sessionID
		ev.SenderID = c.profileID
		c.hub.Broadcast(ev)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() { ticker.Stop(); c.conn.Close() }()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		c.hub.Leave(c.sessionID, c)
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		_ = c.conn.Close()
	})
}
