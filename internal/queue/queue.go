// Package queue is the listener's side of matchmaking.
package queue

import (
	"context"
	"errors"

	"onetalk/internal/account"
	"onetalk/internal/models"
	"onetalk/internal/route"
)

var (
	ErrNotVerified = errors.New("your listener account is not verified yet")
	ErrQueueEmpty  = errors.New("no one is waiting right now")
)

type Backend interface {
	Matchmake(ctx context.Context, listenerProfileID string) (string, error)
	SetAvailable(ctx context.Context, available bool) (models.Profile, error)
}

type Controller struct {
	backend Backend
	acct    *account.Account
}

func New(b Backend, acct *account.Account) *Controller {
	return &Controller{backend: b, acct: acct}
}

// FindChat asks the backend for the oldest waiting seeker. Unverified
// listeners are turned away without a network call.
func (c *Controller) FindChat(ctx context.Context) (route.Route, error) {
	p := c.acct.Profile()
	if p.ListenerStatus != models.ListenerVerified {
		return route.Route{}, ErrNotVerified
	}
	id, err := c.backend.Matchmake(ctx, p.ID)
	if err != nil {
		return route.Route{}, err
	}
	if id == "" {
		return route.Route{}, ErrQueueEmpty
	}
	return route.ToSession(id), nil
}

// SetAvailable toggles whether the listener is taking chats.
func (c *Controller) SetAvailable(ctx context.Context, available bool) (models.Profile, error) {
	p, err := c.backend.SetAvailable(ctx, available)
	if err != nil {
		return models.Profile{}, err
	}
	c.acct.UpdateProfile(p)
	return p, nil
}
