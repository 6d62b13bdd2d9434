package chat

import (
	"time"

	"onetalk/internal/models"
	"onetalk/internal/route"
)

type Kind int

const (
	KindMessages Kind = iota + 1
	KindCountdown
	KindTyping
	KindOffer
	KindNotice
	KindDraft
	KindNavigate
)

func (k Kind) String() string {
	switch k {
	case KindMessages:
		return "messages"
	case KindCountdown:
		return "countdown"
	case KindTyping:
		return "typing"
	case KindOffer:
		return "offer"
	case KindNotice:
		return "notice"
	case KindDraft:
		return "draft"
	case KindNavigate:
		return "navigate"
	}
	return "unknown"
}

type Level int

const (
	Info Level = iota
	Error
)

type Notice struct {
	Level Level
	Text  string
}

// Update is one change for the screen to render. Only the field matching
// Kind is set.
type Update struct {
	Kind Kind

	Messages   []models.Message       // KindMessages: full ordered list
	Remaining  time.Duration          // KindCountdown: never negative
	PeerTyping bool                   // KindTyping
	Offer      *models.ExtensionOffer // KindOffer: nil when cleared
	Notice     Notice                 // KindNotice
	Draft      string                 // KindDraft: text to put back in the compose field
	Route      route.Route            // KindNavigate
}
