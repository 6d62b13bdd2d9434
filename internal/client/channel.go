package client

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"onetalk/internal/realtime"
)

// Channel is a live subscription to one session's real-time room.
type Channel struct {
	sessionID string
	conn      *websocket.Conn
	events    chan realtime.Event
	done      chan struct{}

	writeMu sync.Mutex
	once    sync.Once
}

// Subscribe opens the session's real-time channel.
func (c *Client) Subscribe(ctx context.Context, sessionID string) (realtime.Subscription, error) {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path += "/ws"
	q := url.Values{"session_id": {sessionID}}
	if c.tokens != nil {
		q.Set("token", c.tokens.Token())
	}
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "subscribe: " + resp.Status}
		}
		return nil, err
	}
	ch := &Channel{
		sessionID: sessionID,
		conn:      conn,
		events:    make(chan realtime.Event, 64),
		done:      make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

func (ch *Channel) Events() <-chan realtime.Event { return ch.events }

func (ch *Channel) readLoop() {
	defer close(ch.events)
	for {
		var ev realtime.Event
		if err := ch.conn.ReadJSON(&ev); err != nil {
			ch.Close()
			return
		}
		select {
		case ch.events <- ev:
		case <-ch.done:
			return
		}
	}
}

// Broadcast sends an ephemeral event to everyone in the session, including
// this connection.
func (ch *Channel) Broadcast(ctx context.Context, event string, payload any) error {
	ev, err := realtime.NewBroadcast(ch.sessionID, "", event, payload)
	if err != nil {
		return err
	}
	ch.writeMu.Lock()
	defer ch.writeMu.Unlock()
	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ch.conn.SetWriteDeadline(deadline)
	return ch.conn.WriteJSON(ev)
}

func (ch *Channel) Close() error {
	var err error
	ch.once.Do(func() {
		close(ch.done)
		ch.writeMu.Lock()
		_ = ch.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		ch.writeMu.Unlock()
		err = ch.conn.Close()
	})
	return err
}
