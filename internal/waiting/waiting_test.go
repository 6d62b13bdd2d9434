package waiting

import (
	"context"
	"errors"
	"testing"
	"time"

	"onetalk/internal/clock"
	"onetalk/internal/models"
	"onetalk/internal/route"
	"onetalk/internal/testbackend"
)

func setup(t *testing.T) (*testbackend.Server, models.Profile, models.Profile, models.ChatSession) {
	t.Helper()
	srv := testbackend.New(clock.Fake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	seeker := srv.AddProfile(models.Profile{Nickname: "river"})
	listener := srv.AddProfile(models.Profile{
		Nickname:       "harbor",
		Role:           models.RoleListener,
		ListenerStatus: models.ListenerVerified,
	})
	cs, err := srv.As(seeker.ID).CreateSession(context.Background(), nil, "rough week")
	if err != nil {
		t.Fatal(err)
	}
	return srv, seeker, listener, cs
}

func TestWaitEndsWhenListenerJoins(t *testing.T) {
	srv, seeker, listener, cs := setup(t)
	w := New(srv.As(seeker.ID), cs.ID)

	done := make(chan Result, 1)
	go func() {
		r, err := w.Wait(context.Background())
		if err != nil {
			t.Error(err)
		}
		done <- r
	}()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Subscribers(cs.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("waiting room never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	id, err := srv.As(listener.ID).Matchmake(context.Background(), listener.ID)
	if err != nil || id != cs.ID {
		t.Fatalf("Matchmake = %q, %v", id, err)
	}

	select {
	case r := <-done:
		if r.Route != route.ToSession(cs.ID) || r.Notice != "A listener has joined." {
			t.Fatalf("result = %+v", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return")
	}
	if srv.Subscribers(cs.ID) != 0 {
		t.Fatal("subscription left open")
	}
}

func TestWaitResolvesImmediately(t *testing.T) {
	srv, seeker, listener, cs := setup(t)
	if _, err := srv.As(listener.ID).Matchmake(context.Background(), listener.ID); err != nil {
		t.Fatal(err)
	}
	r, err := New(srv.As(seeker.ID), cs.ID).Wait(context.Background())
	if err != nil || r.Route != route.ToSession(cs.ID) {
		t.Fatalf("Wait = %+v, %v", r, err)
	}
}

func TestCancelClosesRequest(t *testing.T) {
	srv, seeker, _, cs := setup(t)
	w := New(srv.As(seeker.ID), cs.ID)
	if err := w.Cancel(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s, _ := srv.Session(cs.ID); s.Status != models.StatusCompleted {
		t.Fatalf("status = %s", s.Status)
	}
	r, err := w.Wait(context.Background())
	if err != nil || r.Route != route.To(route.Dashboard) {
		t.Fatalf("Wait after cancel = %+v, %v", r, err)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	srv, seeker, _, cs := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := New(srv.As(seeker.ID), cs.ID).Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v", err)
	}
}

func TestWaitSubscribeFailure(t *testing.T) {
	srv, seeker, _, cs := setup(t)
	boom := errors.New("dial failed")
	srv.FailNext("Subscribe", boom)
	if _, err := New(srv.As(seeker.ID), cs.ID).Wait(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Wait = %v", err)
	}
	if srv.Calls("GetSession") != 0 {
		t.Fatal("fetched without a subscription")
	}
}
