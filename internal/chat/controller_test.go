package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"onetalk/internal/client"
	"onetalk/internal/clock"
	"onetalk/internal/logger"
	"onetalk/internal/models"
	"onetalk/internal/realtime"
	"onetalk/internal/route"
	"onetalk/internal/testbackend"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const sid = "s1"

type fixture struct {
	srv      *testbackend.Server
	clk      *clock.FakeClock
	seeker   models.Profile
	listener models.Profile
	marker   int64
}

// newFixture stores an active session whose clock has remaining time left.
func newFixture(t *testing.T, remaining time.Duration) *fixture {
	t.Helper()
	clk := clock.Fake(t0)
	srv := testbackend.New(clk)
	f := &fixture{
		srv:    srv,
		clk:    clk,
		seeker: srv.AddProfile(models.Profile{Nickname: "river"}),
		listener: srv.AddProfile(models.Profile{
			Nickname:       "harbor",
			Role:           models.RoleListener,
			ListenerStatus: models.ListenerVerified,
		}),
		marker: 1_000_000,
	}
	lid := f.listener.ID
	srv.PutSession(models.ChatSession{
		ID:              sid,
		SeekerID:        f.seeker.ID,
		ListenerID:      &lid,
		Status:          models.StatusActive,
		DurationMinutes: 30,
		CreatedAt:       t0.Add(remaining - 30*time.Minute),
	})
	return f
}

func (f *fixture) open(t *testing.T, me models.Profile, opts ...func(*Config)) (*Controller, *recorder) {
	t.Helper()
	cfg := Config{
		Backend:   f.srv.As(me.ID),
		Payments:  SimulatedGateway{},
		Clock:     f.clk,
		Me:        me,
		SessionID: sid,
		Log:       logger.Discard(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	c := New(cfg)
	t.Cleanup(c.Close)
	return c, record(c)
}

func (f *fixture) start(t *testing.T, me models.Profile, opts ...func(*Config)) (*Controller, *recorder) {
	t.Helper()
	c, rec := f.open(t, me, opts...)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return c, rec
}

// flush publishes a marker message and waits until c has it, so every event
// published before it has been handled.
func (f *fixture) flush(t *testing.T, c *Controller) {
	t.Helper()
	f.marker++
	id := f.marker
	ev, err := realtime.NewMessageInserted(models.Message{
		ID:             id,
		SessionID:      sid,
		ProfileID:      f.listener.ID,
		Content:        "marker",
		SenderNickname: "harbor",
		CreatedAt:      f.clk.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.srv.Publish(ev)
	eventually(t, "marker delivered", func() bool {
		for _, m := range c.Messages() {
			if m.ID == id {
				return true
			}
		}
		return false
	})
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func record(c *Controller) *recorder {
	r := &recorder{}
	go func() {
		for u := range c.Updates() {
			r.mu.Lock()
			r.updates = append(r.updates, u)
			r.mu.Unlock()
		}
	}()
	return r
}

func (r *recorder) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func (r *recorder) waitFor(t *testing.T, what string, pred func(Update) bool) Update {
	t.Helper()
	var found Update
	eventually(t, what, func() bool {
		for _, u := range r.all() {
			if pred(u) {
				found = u
				return true
			}
		}
		return false
	})
	return found
}

func (r *recorder) waitNavigate(t *testing.T) route.Route {
	t.Helper()
	return r.waitFor(t, "navigation", func(u Update) bool { return u.Kind == KindNavigate }).Route
}

func (r *recorder) waitNotice(t *testing.T, text string) {
	t.Helper()
	r.waitFor(t, "notice "+text, func(u Update) bool { return u.Kind == KindNotice && u.Notice.Text == text })
}

func (r *recorder) count(pred func(Update) bool) int {
	n := 0
	for _, u := range r.all() {
		if pred(u) {
			n++
		}
	}
	return n
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type failingGateway struct{}

func (failingGateway) Capture(context.Context, models.ExtensionOffer) (string, error) {
	return "", errors.New("card declined")
}

func TestSendBlankMakesNoCall(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	c, _ := f.start(t, f.seeker)

	before := f.srv.TotalCalls()
	for _, text := range []string{"", "   ", "\n\t "} {
		if err := c.Send(context.Background(), text); !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("Send(%q) = %v", text, err)
		}
	}
	if got := f.srv.TotalCalls(); got != before {
		t.Fatalf("blank sends made %d calls", got-before)
	}
}

func TestSendAppendsOnceDespiteEcho(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, _ := f.start(t, f.seeker)
	listener, _ := f.start(t, f.listener)

	if err := seeker.Send(context.Background(), "  hi there  "); err != nil {
		t.Fatal(err)
	}
	if err := listener.Send(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "listener reply", func() bool { return len(seeker.Messages()) == 2 })
	f.flush(t, seeker)

	msgs := seeker.Messages()
	if len(msgs) != 3 || msgs[0].Content != "hi there" || msgs[1].Content != "hello" {
		t.Fatalf("messages = %+v", msgs)
	}
	if msgs[1].SenderNickname != "harbor" {
		t.Fatalf("nickname = %q", msgs[1].SenderNickname)
	}
}

func TestMessagesStayInCreationOrder(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, _ := f.start(t, f.seeker)
	listener, _ := f.start(t, f.listener)

	if err := listener.Send(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}
	if err := seeker.Send(context.Background(), "second"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "both messages", func() bool { return len(seeker.Messages()) == 2 })

	// an older message delivered late still goes before newer ones
	late, err := realtime.NewMessageInserted(models.Message{
		ID:             500,
		SessionID:      sid,
		ProfileID:      f.listener.ID,
		Content:        "delayed",
		SenderNickname: "harbor",
		CreatedAt:      t0.Add(-time.Minute),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.srv.Publish(late)
	f.flush(t, seeker)

	var got []string
	for _, m := range seeker.Messages() {
		got = append(got, m.Content)
	}
	want := []string{"delayed", "first", "second", "marker"}
	if !slices.Equal(got, want) {
		t.Fatalf("order = %q, want %q", got, want)
	}
}

func TestSendFailureRestoresDraft(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	c, rec := f.start(t, f.seeker)

	f.srv.FailNext("SendMessage", &client.APIError{Status: http.StatusInternalServerError, Message: "boom"})
	if err := c.Send(context.Background(), "hello "); err == nil {
		t.Fatal("expected send error")
	}
	rec.waitFor(t, "draft", func(u Update) bool { return u.Kind == KindDraft && u.Draft == "hello " })
	rec.waitNotice(t, "Your message was not sent. Please try again.")
	if n := len(c.Messages()); n != 0 {
		t.Fatalf("failed send left %d messages", n)
	}
}

func TestExpiredOnStartCompletesOnce(t *testing.T) {
	f := newFixture(t, -time.Minute)
	c, rec := f.start(t, f.seeker)

	if r := rec.waitNavigate(t); r != route.ToRating(sid) {
		t.Fatalf("navigated to %v", r)
	}
	rec.waitNotice(t, "Time's up. The chat has ended.")
	f.clk.Advance(5 * time.Second)
	if err := c.End(context.Background()); err != nil {
		t.Fatalf("End after expiry: %v", err)
	}
	if n := f.srv.Calls("CompleteSession"); n != 1 {
		t.Fatalf("CompleteSession called %d times", n)
	}
	if s, _ := f.srv.Session(sid); s.Status != models.StatusCompleted {
		t.Fatalf("status = %s", s.Status)
	}
	if c.Remaining() != 0 {
		t.Fatalf("remaining = %v", c.Remaining())
	}
}

func TestCountdownExpiryCompletes(t *testing.T) {
	f := newFixture(t, 3*time.Second)
	c, rec := f.start(t, f.seeker)

	f.clk.Advance(time.Second)
	rec.waitFor(t, "countdown 2s", func(u Update) bool { return u.Kind == KindCountdown && u.Remaining == 2*time.Second })
	if f.srv.Calls("CompleteSession") != 0 {
		t.Fatal("completed before the deadline")
	}

	f.clk.Advance(2 * time.Second)
	if r := rec.waitNavigate(t); r != route.ToRating(sid) {
		t.Fatalf("navigated to %v", r)
	}
	if n := f.srv.Calls("CompleteSession"); n != 1 {
		t.Fatalf("CompleteSession called %d times", n)
	}
	if c.Remaining() != 0 {
		t.Fatalf("remaining = %v", c.Remaining())
	}
}

func TestEndIsIdempotentAndPeerIsTold(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, srec := f.start(t, f.seeker)
	_, lrec := f.start(t, f.listener)

	for range 3 {
		if err := seeker.End(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if n := f.srv.Calls("CompleteSession"); n != 1 {
		t.Fatalf("CompleteSession called %d times", n)
	}
	if r := srec.waitNavigate(t); r != route.ToRating(sid) {
		t.Fatalf("seeker navigated to %v", r)
	}
	srec.waitNotice(t, "You ended the chat.")

	if r := lrec.waitNavigate(t); r != route.To(route.Dashboard) {
		t.Fatalf("listener navigated to %v", r)
	}
	lrec.waitNotice(t, "The other person has ended the chat.")
	if err := seeker.Send(context.Background(), "still there?"); !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("Send after end = %v", err)
	}
}

func TestEndFailureKeepsChatOpen(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	c, rec := f.start(t, f.seeker)

	f.srv.FailNext("CompleteSession", &client.APIError{Status: http.StatusBadGateway, Message: "upstream"})
	if err := c.End(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	rec.waitNotice(t, "Could not end the chat. Please try again.")
	if _, ok := c.Exit(); ok {
		t.Fatal("navigated after failed end")
	}
	if err := c.End(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	rec.waitNavigate(t)
}

func TestOwnTypingIsIgnored(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, srec := f.start(t, f.seeker)
	listener, lrec := f.start(t, f.listener)

	seeker.Typing(context.Background())
	lrec.waitFor(t, "peer typing", func(u Update) bool { return u.Kind == KindTyping && u.PeerTyping })
	if !listener.PeerTyping() {
		t.Fatal("listener should see typing")
	}

	f.flush(t, seeker)
	if seeker.PeerTyping() {
		t.Fatal("seeker reacted to its own typing event")
	}
	if n := srec.count(func(u Update) bool { return u.Kind == KindTyping }); n != 0 {
		t.Fatalf("seeker got %d typing updates", n)
	}
}

func TestTypingStopsAfterIdle(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, _ := f.start(t, f.seeker)
	listener, lrec := f.start(t, f.listener)
	ctx := context.Background()

	seeker.Typing(ctx)
	f.clk.Advance(time.Second)
	seeker.Typing(ctx)
	if n := f.srv.Calls("Broadcast"); n != 2 {
		t.Fatalf("broadcasts = %d", n)
	}

	f.clk.Advance(1500 * time.Millisecond)
	if n := f.srv.Calls("Broadcast"); n != 2 {
		t.Fatalf("stopped-typing sent before idle: %d broadcasts", n)
	}

	f.clk.Advance(500 * time.Millisecond)
	if n := f.srv.Calls("Broadcast"); n != 3 {
		t.Fatalf("broadcasts after idle = %d", n)
	}
	lrec.waitFor(t, "typing cleared", func(u Update) bool { return u.Kind == KindTyping && !u.PeerTyping })
	if listener.PeerTyping() {
		t.Fatal("typing indicator still on")
	}
}

func TestTypingAfterSendStopsOnce(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, _ := f.start(t, f.seeker)
	ctx := context.Background()

	seeker.Typing(ctx)
	if err := seeker.Send(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	seeker.Typing(ctx)
	if n := f.srv.Calls("Broadcast"); n != 3 {
		t.Fatalf("broadcasts = %d", n)
	}
	f.clk.Advance(TypingIdle)
	if n := f.srv.Calls("Broadcast"); n != 4 {
		t.Fatalf("broadcasts after idle = %d, want one stopped-typing", n)
	}
}

func TestIncomingMessageClearsTyping(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, _ := f.start(t, f.seeker)
	listener, _ := f.start(t, f.listener)

	seeker.Typing(context.Background())
	eventually(t, "typing", listener.PeerTyping)
	f.srv.FailNext("Broadcast", errors.New("dropped"))
	if err := seeker.Send(context.Background(), "ok"); err != nil {
		t.Fatal(err)
	}
	eventually(t, "typing cleared by message", func() bool { return !listener.PeerTyping() })
}

func TestExtensionAppliedExactlyOnce(t *testing.T) {
	f := newFixture(t, 200*time.Second)
	seeker, srec := f.start(t, f.seeker)
	listener, lrec := f.start(t, f.listener)
	ctx := context.Background()

	pkg := Package{Minutes: 30, PriceCents: 499}
	if err := seeker.RequestExtension(ctx, pkg); err != nil {
		t.Fatal(err)
	}
	lrec.waitFor(t, "offer", func(u Update) bool { return u.Kind == KindOffer && u.Offer != nil })
	if o := listener.PendingOffer(); o == nil || o.Minutes != 30 || o.RequestedBy != f.seeker.ID {
		t.Fatalf("pending offer = %+v", o)
	}

	if err := listener.AcceptExtension(ctx); err != nil {
		t.Fatal(err)
	}
	if got := listener.Remaining(); got != 2000*time.Second {
		t.Fatalf("listener remaining = %v", got)
	}
	if listener.PendingOffer() != nil {
		t.Fatal("offer not cleared")
	}
	eventually(t, "seeker extended", func() bool { return seeker.Remaining() == 2000*time.Second })

	// the same record again must not add time
	s, _ := f.srv.Session(sid)
	ev, err := realtime.NewSessionUpdated(s)
	if err != nil {
		t.Fatal(err)
	}
	f.srv.Publish(ev)
	f.srv.Publish(ev)
	f.flush(t, seeker)

	if got := seeker.Remaining(); got != 2000*time.Second {
		t.Fatalf("seeker remaining after repeat = %v", got)
	}
	extended := func(u Update) bool {
		return u.Kind == KindNotice && u.Notice.Text == "The chat was extended by 30 minutes."
	}
	if n := srec.count(extended); n != 1 {
		t.Fatalf("seeker saw %d extension notices", n)
	}
	if s.ExtendedDurationMinutes != 30 {
		t.Fatalf("stored extension = %d", s.ExtendedDurationMinutes)
	}

	txs := f.srv.Transactions()
	if len(txs) != 1 {
		t.Fatalf("transactions = %+v", txs)
	}
	tx := txs[0]
	if tx.ProfileID != f.seeker.ID || tx.Minutes != 30 || tx.AmountCents != 499 || !strings.HasPrefix(tx.Reference, "sim_") {
		t.Fatalf("transaction = %+v", tx)
	}
}

func TestAcceptStopsWhenPaymentFails(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	listener, lrec := f.start(t, f.listener, func(c *Config) { c.Payments = failingGateway{} })
	f.offer(t, listener, 15, 299)

	if err := listener.AcceptExtension(context.Background()); err == nil {
		t.Fatal("expected payment error")
	}
	lrec.waitNotice(t, "Payment failed. The chat was not extended.")
	if n := f.srv.Calls("ExtendSession"); n != 0 {
		t.Fatalf("ExtendSession called %d times", n)
	}
	if len(f.srv.Transactions()) != 0 {
		t.Fatal("transaction recorded without payment")
	}
	if listener.PendingOffer() == nil {
		t.Fatal("offer should stay pending for another try")
	}
}

func TestAcceptStopsWhenExtendFails(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	listener, lrec := f.start(t, f.listener)
	f.offer(t, listener, 15, 299)

	f.srv.FailNext("ExtendSession", &client.APIError{Status: http.StatusConflict, Message: "session is not active"})
	if err := listener.AcceptExtension(context.Background()); err == nil {
		t.Fatal("expected extend error")
	}
	lrec.waitNotice(t, "Could not extend the chat.")
	if len(f.srv.Transactions()) != 0 {
		t.Fatal("transaction recorded for a failed extension")
	}
	if s, _ := f.srv.Session(sid); s.ExtendedDurationMinutes != 0 {
		t.Fatalf("extended = %d", s.ExtendedDurationMinutes)
	}
}

func TestDeclineTellsSeeker(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, srec := f.start(t, f.seeker)
	listener, _ := f.start(t, f.listener)
	ctx := context.Background()

	if err := seeker.RequestExtension(ctx, DefaultPackages[0]); err != nil {
		t.Fatal(err)
	}
	eventually(t, "offer", func() bool { return listener.PendingOffer() != nil })
	if err := listener.DeclineExtension(ctx); err != nil {
		t.Fatal(err)
	}
	srec.waitNotice(t, "The listener declined your extension request.")
	if listener.PendingOffer() != nil {
		t.Fatal("offer still pending")
	}
	if err := listener.DeclineExtension(ctx); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("second decline = %v", err)
	}
	if f.srv.Calls("ExtendSession") != 0 {
		t.Fatal("decline extended the session")
	}
}

func TestExtensionRoles(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	seeker, _ := f.start(t, f.seeker)
	listener, _ := f.start(t, f.listener)
	ctx := context.Background()

	if !seeker.IsSeeker() || listener.IsSeeker() {
		t.Fatal("IsSeeker wrong")
	}
	if err := listener.RequestExtension(ctx, DefaultPackages[1]); !errors.Is(err, ErrNotSeeker) {
		t.Fatalf("listener request = %v", err)
	}
	if err := seeker.AcceptExtension(ctx); !errors.Is(err, ErrNotListener) {
		t.Fatalf("seeker accept = %v", err)
	}
	if err := listener.AcceptExtension(ctx); !errors.Is(err, ErrNoOffer) {
		t.Fatalf("accept without offer = %v", err)
	}
}

func TestStaleSessionRecordIgnored(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	c, _ := f.start(t, f.seeker)

	s, _ := f.srv.Session(sid)
	s.Status = models.StatusWaiting
	s.ListenerID = nil
	ev, err := realtime.NewSessionUpdated(s)
	if err != nil {
		t.Fatal(err)
	}
	f.srv.Publish(ev)
	f.flush(t, c)

	if got := c.Session(); got.Status != models.StatusActive || got.ListenerID == nil {
		t.Fatalf("stale record applied: %+v", got)
	}
}

func TestStartRejectsUnavailableSessions(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		f := newFixture(t, 10*time.Minute)
		s, _ := f.srv.Session(sid)
		s.Status = models.StatusCompleted
		f.srv.PutSession(s)

		c, rec := f.open(t, f.seeker)
		if err := c.Start(context.Background()); !errors.Is(err, ErrSessionUnavailable) {
			t.Fatalf("Start = %v", err)
		}
		if r := rec.waitNavigate(t); r != route.To(route.Dashboard) {
			t.Fatalf("navigated to %v", r)
		}
	})
	t.Run("outsider", func(t *testing.T) {
		f := newFixture(t, 10*time.Minute)
		other := f.srv.AddProfile(models.Profile{Nickname: "meadow"})
		c, _ := f.open(t, other)
		if err := c.Start(context.Background()); !errors.Is(err, ErrSessionUnavailable) {
			t.Fatalf("Start = %v", err)
		}
		if f.srv.Subscribers(sid) != 0 {
			t.Fatal("outsider left subscribed")
		}
	})
}

func TestSubscribeFailureStillLoadsChat(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	f.srv.FailNext("Subscribe", errors.New("dial failed"))
	c, rec := f.start(t, f.seeker)

	rec.waitNotice(t, "Live updates are unavailable. Messages from the other person may not appear.")
	if err := c.Send(context.Background(), "anyone?"); err != nil {
		t.Fatal(err)
	}
	if n := len(c.Messages()); n != 1 {
		t.Fatalf("messages = %d", n)
	}
	if err := c.RequestExtension(context.Background(), DefaultPackages[0]); !errors.Is(err, ErrNoChannel) {
		t.Fatalf("request without channel = %v", err)
	}
}

func TestHistoryLoadedOnStart(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	peer := f.srv.As(f.listener.ID)
	for i := range 3 {
		if _, err := peer.SendMessage(context.Background(), sid, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	c, rec := f.start(t, f.seeker)
	u := rec.waitFor(t, "history", func(u Update) bool { return u.Kind == KindMessages })
	if len(u.Messages) != 3 || u.Messages[2].Content != "m2" {
		t.Fatalf("history = %+v", u.Messages)
	}
	if len(c.Messages()) != 3 {
		t.Fatal("controller state out of sync")
	}
}

type slowSend struct {
	*testbackend.Conn
	entered chan struct{}
	release chan struct{}
}

func (s slowSend) SendMessage(ctx context.Context, sessionID, content string) (models.Message, error) {
	close(s.entered)
	<-s.release
	return s.Conn.SendMessage(context.Background(), sessionID, content)
}

func TestCloseDiscardsLateResponses(t *testing.T) {
	f := newFixture(t, 10*time.Minute)
	slow := slowSend{Conn: f.srv.As(f.seeker.ID), entered: make(chan struct{}), release: make(chan struct{})}
	c, _ := f.start(t, f.seeker, func(cfg *Config) { cfg.Backend = slow })

	done := make(chan error, 1)
	go func() { done <- c.Send(context.Background(), "late") }()
	<-slow.entered
	c.Close()
	close(slow.release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("Send = %v", err)
	}
	if n := len(c.Messages()); n != 0 {
		t.Fatalf("closed controller gained %d messages", n)
	}
	if f.srv.Subscribers(sid) != 0 {
		t.Fatal("still subscribed after Close")
	}
	for range c.Updates() {
	}
	if err := c.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("Start after Close = %v", err)
	}
	c.Close()
}

func (f *fixture) offer(t *testing.T, listener *Controller, minutes, cents int) {
	t.Helper()
	ev, err := realtime.NewBroadcast(sid, f.seeker.ID, realtime.EventExtensionRequest,
		models.ExtensionOffer{Minutes: minutes, PriceCents: cents, RequestedBy: f.seeker.ID})
	if err != nil {
		t.Fatal(err)
	}
	f.srv.Publish(ev)
	eventually(t, "offer", func() bool { return listener.PendingOffer() != nil })
}
