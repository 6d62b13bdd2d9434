package sessions

import (
	"context"
	"time"

	"onetalk/internal/models"
	"onetalk/internal/realtime"
)

// Broadcaster fans a real-time event out to everyone in its session room.
type Broadcaster interface {
	Broadcast(ev realtime.Event)
}

// StartExpirer closes overdue sessions every interval until ctx is done.
// Clients only display a countdown; this is what actually ends a chat.
func StartExpirer(ctx context.Context, s *Service, hub Broadcaster, every, grace time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			expireOnce(ctx, s, hub, grace)
		}
	}
}

// expireOnce completes every overdue session and tells its room.
func expireOnce(ctx context.Context, s *Service, hub Broadcaster, grace time.Duration) {
	closed, err := s.ExpireOverdue(ctx, grace)
	if err != nil {
		if ctx.Err() == nil {
			s.log.WithError(err).Warn("expire sessions")
		}
		return
	}
	for _, cs := range closed {
		s.log.WithField("session_id", cs.ID).Info("session expired")
		announce(s, hub, cs)
	}
}

func announce(s *Service, hub Broadcaster, cs models.ChatSession) {
	ev, err := realtime.NewSessionUpdated(cs)
	if err != nil {
		s.log.WithError(err).Error("encode session update")
		return
	}
	hub.Broadcast(ev)
}
