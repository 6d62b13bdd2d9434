package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"onetalk/internal/account"
	"onetalk/internal/chat"
	"onetalk/internal/client"
	"onetalk/internal/clock"
	"onetalk/internal/logger"
	"onetalk/internal/models"
	"onetalk/internal/route"
	"onetalk/internal/testbackend"
)

type fakeAPI struct {
	*testbackend.Conn
	signIns int
}

func (f *fakeAPI) SignUp(ctx context.Context, nickname, password string, listener bool) (client.AuthResult, error) {
	f.signIns++
	return client.AuthResult{Token: "tok", Profile: models.Profile{ID: "p-new", Nickname: nickname}}, nil
}

func (f *fakeAPI) SignIn(ctx context.Context, nickname, password string) (client.AuthResult, error) {
	f.signIns++
	return client.AuthResult{Token: "tok", Profile: models.Profile{ID: "p-in", Nickname: nickname}}, nil
}

func (f *fakeAPI) Topics(context.Context) ([]models.Topic, error) { return nil, nil }

func (f *fakeAPI) History(context.Context) ([]models.HistoryEntry, error) { return nil, nil }

func (f *fakeAPI) RateSession(_ context.Context, id string, score int, comment string) (models.Rating, error) {
	return models.Rating{SessionID: id, Score: score, Comment: comment}, nil
}

func newApp(t *testing.T, acct *account.Account, start route.Route) (*App, *testbackend.Server, *fakeAPI) {
	t.Helper()
	srv := testbackend.New(clock.Fake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
	id := acct.Profile().ID
	api := &fakeAPI{Conn: srv.As(id)}
	app := New(context.Background(), Config{API: api, Account: acct, Log: logger.Discard(), Start: start})
	return app, srv, api
}

func run(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestSignedOutRoutesGoToAuth(t *testing.T) {
	app, _, _ := newApp(t, &account.Account{}, route.To(route.Dashboard))
	if app.Route() != route.To(route.Auth) {
		t.Fatalf("route = %v", app.Route())
	}

	app.Update(navigateMsg{to: route.ToSession("s1")})
	if app.Route() != route.To(route.Auth) {
		t.Fatalf("route after navigate = %v", app.Route())
	}

	app.Update(navigateMsg{to: route.Parse("/no/such/page")})
	if app.Route().Name != route.NotFound {
		t.Fatalf("unknown path = %v", app.Route())
	}
}

func TestAuthValidatesLocally(t *testing.T) {
	acct := &account.Account{}
	app, _, api := newApp(t, acct, route.To(route.Auth))
	s := app.screen.(*authScreen)

	msg := run(s.submit())
	n, ok := msg.(noticeMsg)
	if !ok || !n.error {
		t.Fatalf("submit with empty form = %#v", msg)
	}
	if api.signIns != 0 {
		t.Fatal("invalid form reached the backend")
	}

	s.inputs[0].SetValue("quiet river")
	s.inputs[1].SetValue("secret1")
	msg = run(s.submit())
	done, ok := msg.(authDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("submit = %#v", msg)
	}
	_, cmd := app.Update(done)
	nav, ok := run(cmd).(navigateMsg)
	if !ok || nav.to != route.To(route.Dashboard) {
		t.Fatalf("after sign-in = %#v", nav)
	}
	if !acct.Authenticated() || acct.Profile().Nickname != "quiet river" {
		t.Fatal("account not populated")
	}
}

func TestDashboardOffersRoleActions(t *testing.T) {
	seeker := &account.Account{}
	seeker.SignedIn("tok", models.Profile{ID: "p1", Nickname: "river", Role: models.RoleSeeker})
	app, _, _ := newApp(t, seeker, route.Route{})
	if app.Route() != route.To(route.Dashboard) {
		t.Fatalf("signed-in start = %v", app.Route())
	}
	if v := app.View(); !strings.Contains(v, "Talk to someone") || strings.Contains(v, "Listener queue") {
		t.Fatalf("seeker dashboard:\n%s", v)
	}

	listener := &account.Account{}
	listener.SignedIn("tok", models.Profile{ID: "p2", Nickname: "harbor", Role: models.RoleListener})
	app, _, _ = newApp(t, listener, route.Route{})
	if v := app.View(); !strings.Contains(v, "Listener queue") {
		t.Fatalf("listener dashboard:\n%s", v)
	}
}

func TestLeavingChatClosesController(t *testing.T) {
	acct := &account.Account{}
	app, srv, _ := newApp(t, acct, route.Route{})
	seeker := srv.AddProfile(models.Profile{Nickname: "river"})
	acct.SignedIn("tok", seeker)
	app.cfg.API = &fakeAPI{Conn: srv.As(seeker.ID)}
	srv.PutSession(models.ChatSession{
		ID:              "s1",
		SeekerID:        seeker.ID,
		Status:          models.StatusActive,
		DurationMinutes: 30,
		CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	app.Update(navigateMsg{to: route.ToSession("s1")})
	s, ok := app.screen.(*sessionScreen)
	if !ok {
		t.Fatalf("screen = %T", app.screen)
	}
	if err := s.ctrl.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if srv.Subscribers("s1") != 1 {
		t.Fatal("chat not subscribed")
	}

	app.Update(navigateMsg{to: route.To(route.Dashboard)})
	if srv.Subscribers("s1") != 0 {
		t.Fatal("leaving the chat left it subscribed")
	}
}

func TestSessionUpdatesBecomeMessages(t *testing.T) {
	acct := &account.Account{}
	acct.SignedIn("tok", models.Profile{ID: "p1", Nickname: "river"})
	app, _, _ := newApp(t, acct, route.ToSession("s1"))
	s := app.screen.(*sessionScreen)
	t.Cleanup(s.close)

	nav, ok := run(s.apply(chat.Update{Kind: chat.KindNavigate, Route: route.ToRating("s1")})).(navigateMsg)
	if !ok || nav.to != route.ToRating("s1") {
		t.Fatalf("navigate = %#v", nav)
	}
	n, ok := run(s.apply(chat.Update{Kind: chat.KindNotice, Notice: chat.Notice{Level: chat.Error, Text: "nope"}})).(noticeMsg)
	if !ok || !n.error || n.text != "nope" {
		t.Fatalf("notice = %#v", n)
	}

	s.apply(chat.Update{Kind: chat.KindDraft, Draft: "try again"})
	if s.input.Value() != "try again" {
		t.Fatalf("draft = %q", s.input.Value())
	}
	s.apply(chat.Update{Kind: chat.KindCountdown, Remaining: 90 * time.Second})
	if v := s.View(); !strings.Contains(v, "01:30 left") {
		t.Fatalf("view:\n%s", v)
	}
}

func TestFormatRemaining(t *testing.T) {
	for _, tc := range []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{59 * time.Second, "00:59"},
		{2000 * time.Second, "33:20"},
		{61*time.Minute + 500*time.Millisecond, "61:01"},
	} {
		if got := formatRemaining(tc.d); got != tc.want {
			t.Errorf("formatRemaining(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}
