package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"onetalk/internal/realtime"
)

// Broker carries frames between API instances. Without one the hub only
// fans out to its own connections.
type Broker interface {
	Publish(ctx context.Context, sessionID string, frame []byte) error
	// Subscribe blocks, calling deliver for every frame published by any instance,
	// until ctx is done.
	Subscribe(ctx context.Context, deliver func(sessionID string, frame []byte)) error
	Close() error
}

type Hub struct {
	broker Broker
	log    *logrus.Entry
	rooms  map[string]map[*Client]bool
	mu     sync.RWMutex
}

func NewHub(broker Broker, log *logrus.Entry) *Hub {
	return &Hub{broker: broker, log: log, rooms: make(map[string]map[*Client]bool)}
}

// Run relays broker traffic into local rooms until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.broker == nil {
		<-ctx.Done()
		return
	}
	for ctx.Err() == nil {
		if err := h.broker.Subscribe(ctx, h.deliver); err != nil && ctx.Err() == nil {
			h.log.WithError(err).Warn("broker subscription dropped, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
	}
}

func (h *Hub) Join(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Client]bool)
	}
	h.rooms[sessionID][c] = true
}

func (h *Hub) Leave(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.rooms[sessionID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

// RoomSize is the number of local connections subscribed to a session.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// Broadcast sends ev to every subscriber of its session, on every instance.
func (h *Hub) Broadcast(ev realtime.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Error("marshal realtime event")
		return
	}
	if h.broker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := h.broker.Publish(ctx, ev.SessionID, b)
		if err == nil {
			return
		}
		h.log.WithError(err).WithField("session_id", ev.SessionID).Warn("broker publish failed, delivering locally")
	}
	h.deliver(ev.SessionID, b)
}

func (h *Hub) deliver(sessionID string, frame []byte) {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		if !c.enqueue(frame) {
			go c.Close()
		}
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)
