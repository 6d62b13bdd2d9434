// Package waiting watches a seeker's freshly created session until a
// listener picks it up.
package waiting

import (
	"context"
	"errors"

	"onetalk/internal/models"
	"onetalk/internal/realtime"
	"onetalk/internal/route"
)

var ErrConnectionLost = errors.New("lost the live connection while waiting")

type Backend interface {
	GetSession(ctx context.Context, id string) (models.ChatSession, error)
	CompleteSession(ctx context.Context, id string) (models.ChatSession, error)
	Subscribe(ctx context.Context, sessionID string) (realtime.Subscription, error)
}

// Result is where the waiting room leads.
type Result struct {
	Route  route.Route
	Notice string
}

type Controller struct {
	backend   Backend
	sessionID string
}

func New(b Backend, sessionID string) *Controller {
	return &Controller{backend: b, sessionID: sessionID}
}

// Wait blocks until the session leaves the waiting state, ctx is done, or
// the connection drops. It subscribes before the initial fetch, so an
// activation that lands in between is still seen.
func (c *Controller) Wait(ctx context.Context) (Result, error) {
	sub, err := c.backend.Subscribe(ctx, c.sessionID)
	if err != nil {
		return Result{}, err
	}
	defer sub.Close()

	s, err := c.backend.GetSession(ctx, c.sessionID)
	if err != nil {
		return Result{Route: route.To(route.Dashboard), Notice: "This chat request is no longer available."}, err
	}
	if r, done := c.resolve(s); done {
		return r, nil
	}

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return Result{}, ErrConnectionLost
			}
			if ev.Type != realtime.TypeSessionUpdated {
				continue
			}
			s, err := ev.Session()
			if err != nil {
				continue
			}
			if r, done := c.resolve(s); done {
				return r, nil
			}
		}
	}
}

func (c *Controller) resolve(s models.ChatSession) (Result, bool) {
	if s.ID != c.sessionID {
		return Result{}, false
	}
	switch s.Status {
	case models.StatusActive:
		return Result{Route: route.ToSession(s.ID), Notice: "A listener has joined."}, true
	case models.StatusCompleted:
		return Result{Route: route.To(route.Dashboard), Notice: "This chat request was closed."}, true
	}
	return Result{}, false
}

// Cancel abandons the wait by completing the session.
func (c *Controller) Cancel(ctx context.Context) error {
	_, err := c.backend.CompleteSession(ctx, c.sessionID)
	return err
}
