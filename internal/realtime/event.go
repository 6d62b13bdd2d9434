// Package realtime defines the frames exchanged on a session's real-time
// channel. The server hub and the client both speak it.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"onetalk/internal/models"
)

type Type string

const (
	TypeMessageInserted Type = "message.inserted"
	TypeSessionUpdated  Type = "session.updated"
	TypeBroadcast       Type = "broadcast"
)

// Broadcast event names. These are ephemeral and never stored.
const (
	EventTyping            = "typing"
	EventStoppedTyping     = "stopped-typing"
	EventExtensionRequest  = "extension-request"
	EventExtensionAccepted = "extension-accepted"
	EventExtensionDeclined = "extension-declined"
)

// ValidBroadcast reports whether clients may send the named broadcast event.
func ValidBroadcast(event string) bool {
	switch event {
	case EventTyping, EventStoppedTyping, EventExtensionRequest, EventExtensionAccepted, EventExtensionDeclined:
		return true
	}
	return false
}

type Event struct {
	Type      Type            `json:"type"`
	SessionID string          `json:"session_id"`
	SenderID  string          `json:"sender_id,omitempty"`
	Event     string          `json:"event,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func NewMessageInserted(m models.Message) (Event, error) {
	p, err := json.Marshal(m)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: TypeMessageInserted, SessionID: m.SessionID, SenderID: m.ProfileID, Payload: p}, nil
}

func NewSessionUpdated(s models.ChatSession) (Event, error) {
	p, err := json.Marshal(s)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: TypeSessionUpdated, SessionID: s.ID, Payload: p}, nil
}

func NewBroadcast(sessionID, senderID, event string, payload any) (Event, error) {
	ev := Event{Type: TypeBroadcast, SessionID: sessionID, SenderID: senderID, Event: event}
	if payload != nil {
		p, err := json.Marshal(payload)
		if err != nil {
			return Event{}, err
		}
		ev.Payload = p
	}
	return ev, nil
}

func (e Event) Message() (models.Message, error) {
	var m models.Message
	return m, e.decode(TypeMessageInserted, &m)
}

func (e Event) Session() (models.ChatSession, error) {
	var s models.ChatSession
	return s, e.decode(TypeSessionUpdated, &s)
}

func (e Event) Offer() (models.ExtensionOffer, error) {
	var o models.ExtensionOffer
	return o, e.decode(TypeBroadcast, &o)
}

func (e Event) decode(want Type, dst any) error {
	if e.Type != want {
		return fmt.Errorf("realtime: event is %s, not %s", e.Type, want)
	}
	if len(e.Payload) == 0 {
		return fmt.Errorf("realtime: %s event has no payload", e.Type)
	}
	return json.Unmarshal(e.Payload, dst)
}

// Topic is the broker channel name for a session room.
func Topic(sessionID string) string { return TopicPrefix + sessionID }

const TopicPrefix = "onetalk:session:"

// Subscription is a live view of one session's channel. Events is closed
// when the connection ends; Close is safe to call more than once.
type Subscription interface {
	Events() <-chan Event
	Broadcast(ctx context.Context, event string, payload any) error
	Close() error
}
