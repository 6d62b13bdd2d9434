// Package chat drives a live chat session screen: history, real-time events,
// the display countdown, typing indicators, and extension negotiation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"onetalk/internal/clock"
	"onetalk/internal/mailbox"
	"onetalk/internal/models"
	"onetalk/internal/realtime"
	"onetalk/internal/route"
)

var (
	ErrSessionUnavailable = errors.New("chat session is not available")
	ErrEmptyMessage       = errors.New("message is empty")
	ErrSessionEnded       = errors.New("chat has ended")
	ErrClosed             = errors.New("chat screen closed")
	ErrNotSeeker          = errors.New("only the seeker can request an extension")
	ErrNotListener        = errors.New("only the listener can answer an extension request")
	ErrNoOffer            = errors.New("no pending extension request")
	ErrBusy               = errors.New("an extension is already being processed")
	ErrNoChannel          = errors.New("live connection unavailable")
)

const (
	// TypingIdle is how long after the last keystroke stopped-typing is sent.
	TypingIdle   = 2 * time.Second
	TickInterval = time.Second
)

// Backend is the remote API the controller needs.
type Backend interface {
	GetSession(ctx context.Context, id string) (models.ChatSession, error)
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
	GetMessage(ctx context.Context, id int64) (models.Message, error)
	SendMessage(ctx context.Context, sessionID, content string) (models.Message, error)
	CompleteSession(ctx context.Context, id string) (models.ChatSession, error)
	ExtendSession(ctx context.Context, sessionID string, minutes int) (models.ChatSession, error)
	RecordTransaction(ctx context.Context, req models.TransactionRequest) (models.Transaction, error)
	Subscribe(ctx context.Context, sessionID string) (realtime.Subscription, error)
}

type Config struct {
	Backend   Backend
	Payments  PaymentGateway
	Clock     clock.Clock
	Me        models.Profile
	SessionID string
	Log       *logrus.Entry
}

// Controller holds the state of one chat screen. All methods are safe for
// concurrent use. Once Close is called, late responses are discarded.
type Controller struct {
	backend   Backend
	payments  PaymentGateway
	clock     clock.Clock
	me        models.Profile
	sessionID string
	log       *logrus.Entry
	out       *mailbox.Mailbox[Update]

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	started     bool
	closed      bool
	session     models.ChatSession
	messages    []models.Message
	seen        map[int64]bool
	peerTyping  bool
	offer       *models.ExtensionOffer // listener: request awaiting an answer
	requested   *models.ExtensionOffer // seeker: request sent, not yet answered
	ending      bool
	expired     bool
	accepting   bool
	lostNotice  bool
	exit        *route.Route
	sub         realtime.Subscription
	ticker      *clock.Ticker
	typingTimer *clock.Timer
}

func New(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Payments == nil {
		cfg.Payments = SimulatedGateway{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend:   cfg.Backend,
		payments:  cfg.Payments,
		clock:     cfg.Clock,
		me:        cfg.Me,
		sessionID: cfg.SessionID,
		log:       cfg.Log.WithField("session_id", cfg.SessionID),
		out:       mailbox.New[Update](),
		ctx:       ctx,
		cancel:    cancel,
		seen:      make(map[int64]bool),
	}
}

// Updates streams changes for the screen. It is closed by Close.
func (c *Controller) Updates() <-chan Update { return c.out.C() }

// Start loads the session and begins listening. It subscribes before
// fetching history so that nothing inserted during the fetch is lost; events
// queued on the subscription are replayed afterwards and de-duplicated.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("chat: already started")
	}
	c.started = true
	c.mu.Unlock()

	ctx, stop := mergeCancel(ctx, c.ctx)
	defer stop()

	sub, subErr := c.backend.Subscribe(ctx, c.sessionID)
	if subErr != nil {
		c.log.WithError(subErr).Warn("subscribe failed")
	}

	s, err := c.backend.GetSession(ctx, c.sessionID)
	if err == nil && (s.Status == models.StatusCompleted || !s.IsParticipant(c.me.ID)) {
		err = ErrSessionUnavailable
	}
	if err != nil {
		if sub != nil {
			sub.Close()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return ErrClosed
		}
		c.noticeLocked(Error, "This chat is no longer available.")
		c.navigateLocked(route.To(route.Dashboard))
		if errors.Is(err, ErrSessionUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	history, histErr := c.backend.ListMessages(ctx, c.sessionID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if sub != nil {
			sub.Close()
		}
		return ErrClosed
	}
	c.sub = sub
	c.session = s
	for _, m := range history {
		c.appendLocked(m)
	}
	if subErr != nil {
		c.noticeLocked(Error, "Live updates are unavailable. Messages from the other person may not appear.")
	}
	if histErr != nil {
		c.noticeLocked(Error, "Could not load earlier messages.")
	}
	c.emitMessagesLocked()
	c.emitCountdownLocked()
	c.ticker = c.clock.NewTicker(TickInterval)
	var events <-chan realtime.Event
	if sub != nil {
		events = sub.Events()
	}
	ticker := c.ticker
	expiredNow := c.remainingLocked() <= 0
	if expiredNow {
		c.expired = true
	}
	c.mu.Unlock()

	go c.loop(events, ticker)
	if expiredNow {
		_ = c.finish(c.ctx, true)
	}
	return nil
}

func (c *Controller) loop(events <-chan realtime.Event, ticker *clock.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				c.connectionLost()
				continue
			}
			c.handle(ev)
		case <-ticker.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	c.mu.Lock()
	if c.closed || c.exit != nil {
		c.mu.Unlock()
		return
	}
	c.emitCountdownLocked()
	due := c.remainingLocked() <= 0 && !c.expired && c.session.Status == models.StatusActive
	if due {
		c.expired = true
	}
	c.mu.Unlock()
	if due {
		_ = c.finish(c.ctx, true)
	}
}

func (c *Controller) handle(ev realtime.Event) {
	if ev.SessionID != "" && ev.SessionID != c.sessionID {
		return
	}
	switch ev.Type {
	case realtime.TypeMessageInserted:
		m, err := ev.Message()
		if err != nil {
			c.log.WithError(err).Debug("bad message event")
			return
		}
		if m.SenderNickname == "" {
			if full, err := c.backend.GetMessage(c.ctx, m.ID); err == nil {
				m = full
			}
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || m.SessionID != c.sessionID {
			return
		}
		if c.appendLocked(m) {
			if m.ProfileID != c.me.ID && c.peerTyping {
				c.setPeerTypingLocked(false)
			}
			c.emitMessagesLocked()
		}

	case realtime.TypeSessionUpdated:
		s, err := ev.Session()
		if err != nil {
			c.log.WithError(err).Debug("bad session event")
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.applySessionLocked(s)

	case realtime.TypeBroadcast:
		if ev.SenderID == c.me.ID {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.handleBroadcastLocked(ev)
	}
}

func (c *Controller) handleBroadcastLocked(ev realtime.Event) {
	switch ev.Event {
	case realtime.EventTyping:
		c.setPeerTypingLocked(true)
	case realtime.EventStoppedTyping:
		c.setPeerTypingLocked(false)
	case realtime.EventExtensionRequest:
		if !c.isListenerLocked() || c.session.Status != models.StatusActive {
			return
		}
		offer, err := ev.Offer()
		if err != nil || offer.Minutes <= 0 {
			return
		}
		c.offer = &offer
		c.emitOfferLocked()
	case realtime.EventExtensionAccepted:
		if c.isSeekerLocked() && c.requested != nil {
			c.requested = nil
			c.noticeLocked(Info, "The listener accepted your extension.")
		}
	case realtime.EventExtensionDeclined:
		if c.isSeekerLocked() && c.requested != nil {
			c.requested = nil
			c.noticeLocked(Info, "The listener declined your extension request.")
		}
	}
}

// applySessionLocked reconciles local state with an authoritative record.
// The deadline is always recomputed from the record, so applying the same
// record twice changes nothing.
func (c *Controller) applySessionLocked(s models.ChatSession) {
	if s.ID != c.sessionID || s.Status.Precedes(c.session.Status) {
		return
	}
	prev := c.session
	c.session = s

	if delta := s.ExtendedDurationMinutes - prev.ExtendedDurationMinutes; delta > 0 {
		c.requested = nil
		c.noticeLocked(Info, fmt.Sprintf("The chat was extended by %d minutes.", delta))
	}
	if c.remainingLocked() > 0 {
		c.expired = false
	}
	if c.exit == nil {
		c.emitCountdownLocked()
	}

	if s.Status == models.StatusCompleted && prev.Status != models.StatusCompleted && !c.ending && c.exit == nil {
		if c.remainingLocked() <= 0 {
			c.noticeLocked(Info, "Time's up. The chat has ended.")
		} else {
			c.noticeLocked(Info, "The other person has ended the chat.")
		}
		c.navigateLocked(c.afterEndLocked())
	}
}

func (c *Controller) connectionLost() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.exit != nil || c.lostNotice {
		return
	}
	c.lostNotice = true
	c.noticeLocked(Error, "Lost the live connection to this chat.")
}

// Typing is called on every keystroke. It announces typing and re-arms the
// idle timer that announces stopped-typing.
func (c *Controller) Typing(ctx context.Context) {
	c.mu.Lock()
	if c.closed || c.sub == nil || c.session.Status != models.StatusActive {
		c.mu.Unlock()
		return
	}
	sub := c.sub
	if c.typingTimer == nil {
		c.typingTimer = c.clock.AfterFunc(TypingIdle, c.typingIdle)
	} else {
		c.typingTimer.Reset(TypingIdle)
	}
	c.mu.Unlock()
	c.broadcast(ctx, sub, realtime.EventTyping, nil)
}

func (c *Controller) typingIdle() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	sub := c.sub
	c.mu.Unlock()
	c.broadcast(c.ctx, sub, realtime.EventStoppedTyping, nil)
}

// Send posts a message. Blank input is rejected without a network call. On
// failure the text comes back as a KindDraft update.
func (c *Controller) Send(ctx context.Context, text string) error {
	content := strings.TrimSpace(text)
	if content == "" {
		return ErrEmptyMessage
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.session.Status != models.StatusActive || c.exit != nil {
		c.mu.Unlock()
		return ErrSessionEnded
	}
	sub := c.sub
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	c.mu.Unlock()

	c.broadcast(ctx, sub, realtime.EventStoppedTyping, nil)
	m, err := c.backend.SendMessage(ctx, c.sessionID, content)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err != nil {
		c.log.WithError(err).Warn("send message")
		c.emitLocked(Update{Kind: KindDraft, Draft: text})
		c.noticeLocked(Error, "Your message was not sent. Please try again.")
		return err
	}
	if c.appendLocked(m) {
		c.emitMessagesLocked()
	}
	return nil
}

// End completes the chat. Calling it again, or after the chat completed, is
// a no-op.
func (c *Controller) End(ctx context.Context) error {
	return c.finish(ctx, false)
}

func (c *Controller) finish(ctx context.Context, expired bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.ending || c.exit != nil || c.session.Status == models.StatusCompleted {
		c.mu.Unlock()
		return nil
	}
	c.ending = true
	c.mu.Unlock()

	s, err := c.backend.CompleteSession(ctx, c.sessionID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.ending = false
		return ErrClosed
	}
	if err != nil {
		c.ending = false
		c.log.WithError(err).Warn("complete session")
		if c.session.Status == models.StatusCompleted && c.exit == nil {
			// the peer got there first while our call was failing
			c.noticeLocked(Info, "The chat has ended.")
			c.navigateLocked(c.afterEndLocked())
			return nil
		}
		c.noticeLocked(Error, "Could not end the chat. Please try again.")
		return err
	}
	// still ending, so the record is not mistaken for the peer hanging up
	c.applySessionLocked(s)
	c.ending = false
	if c.exit != nil {
		return nil
	}
	if expired {
		c.noticeLocked(Info, "Time's up. The chat has ended.")
	} else {
		c.noticeLocked(Info, "You ended the chat.")
	}
	c.navigateLocked(c.afterEndLocked())
	return nil
}

// RequestExtension sends the seeker's offer to the listener. A new request
// supersedes any unanswered one.
func (c *Controller) RequestExtension(ctx context.Context, p Package) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.isSeekerLocked() {
		c.mu.Unlock()
		return ErrNotSeeker
	}
	if c.session.Status != models.StatusActive || c.exit != nil {
		c.mu.Unlock()
		return ErrSessionEnded
	}
	sub := c.sub
	c.mu.Unlock()

	offer := models.ExtensionOffer{Minutes: p.Minutes, PriceCents: p.PriceCents, RequestedBy: c.me.ID}
	err := ErrNoChannel
	if sub != nil {
		err = sub.Broadcast(ctx, realtime.EventExtensionRequest, offer)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err != nil {
		c.noticeLocked(Error, "Could not send the extension request.")
		return err
	}
	c.requested = &offer
	c.noticeLocked(Info, fmt.Sprintf("Requested %s. Waiting for the listener.", p))
	return nil
}

// AcceptExtension captures payment, extends the session, and records the
// transaction, in that order. A failed step stops the ones after it.
func (c *Controller) AcceptExtension(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.isListenerLocked() {
		c.mu.Unlock()
		return ErrNotListener
	}
	if c.offer == nil {
		c.mu.Unlock()
		return ErrNoOffer
	}
	if c.session.Status != models.StatusActive || c.exit != nil {
		c.mu.Unlock()
		return ErrSessionEnded
	}
	if c.accepting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.accepting = true
	offer := *c.offer
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.accepting = false
		c.mu.Unlock()
	}()

	ref, err := c.payments.Capture(ctx, offer)
	if err != nil {
		c.fail(err, "Payment failed. The chat was not extended.")
		return err
	}
	s, err := c.backend.ExtendSession(ctx, c.sessionID, offer.Minutes)
	if err != nil {
		c.fail(err, "Could not extend the chat.")
		return err
	}

	c.mu.Lock()
	live := !c.closed
	var sub realtime.Subscription
	if live {
		c.applySessionLocked(s)
		c.offer = nil
		c.emitOfferLocked()
		sub = c.sub
	}
	c.mu.Unlock()

	// Money has moved, so the record is written even if the screen closed.
	_, txErr := c.backend.RecordTransaction(ctx, models.TransactionRequest{
		SessionID:   c.sessionID,
		PayerID:     offer.RequestedBy,
		Minutes:     offer.Minutes,
		AmountCents: offer.PriceCents,
		Reference:   ref,
	})
	if txErr != nil {
		c.fail(txErr, "The chat was extended but the payment could not be recorded.")
	}
	if live {
		c.broadcast(ctx, sub, realtime.EventExtensionAccepted, offer)
	}
	if !live {
		return ErrClosed
	}
	return txErr
}

// DeclineExtension drops the pending request and tells the seeker.
func (c *Controller) DeclineExtension(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.isListenerLocked() {
		c.mu.Unlock()
		return ErrNotListener
	}
	if c.offer == nil {
		c.mu.Unlock()
		return ErrNoOffer
	}
	offer := *c.offer
	c.offer = nil
	c.emitOfferLocked()
	sub := c.sub
	c.mu.Unlock()

	c.broadcast(ctx, sub, realtime.EventExtensionDeclined, offer)
	return nil
}

// Close tears the screen down: it unsubscribes, stops timers, and closes
// Updates. It is safe to call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.haltLocked()
	c.mu.Unlock()
	c.out.Close()
}

func (c *Controller) Session() models.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.messages...)
}

// Remaining is the display countdown. It is never negative.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(c.remainingLocked(), 0)
}

func (c *Controller) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyping
}

// PendingOffer is the extension request awaiting the listener's answer.
func (c *Controller) PendingOffer() *models.ExtensionOffer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.offer == nil {
		return nil
	}
	o := *c.offer
	return &o
}

// IsSeeker reports whether the local user is the seeker of this session.
func (c *Controller) IsSeeker() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isSeekerLocked()
}

// Exit returns where the screen navigated to, once it has.
func (c *Controller) Exit() (route.Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exit == nil {
		return route.Route{}, false
	}
	return *c.exit, true
}

func (c *Controller) remainingLocked() time.Duration {
	return c.session.Deadline().Sub(c.clock.Now())
}

func (c *Controller) isSeekerLocked() bool { return c.session.SeekerID == c.me.ID }

func (c *Controller) isListenerLocked() bool {
	return c.session.ListenerID != nil && *c.session.ListenerID == c.me.ID
}

func (c *Controller) afterEndLocked() route.Route {
	if c.isSeekerLocked() {
		return route.ToRating(c.sessionID)
	}
	return route.To(route.Dashboard)
}

// appendLocked inserts m by (CreatedAt, ID) unless it is already present.
// Our own sent message can arrive before an older peer message that is still
// queued on the channel. Existing entries keep their relative order.
func (c *Controller) appendLocked(m models.Message) bool {
	if c.seen[m.ID] {
		return false
	}
	c.seen[m.ID] = true
	i := len(c.messages)
	for i > 0 && messageBefore(m, c.messages[i-1]) {
		i--
	}
	c.messages = slices.Insert(c.messages, i, m)
	return true
}

func messageBefore(a, b models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (c *Controller) setPeerTypingLocked(on bool) {
	if c.peerTyping == on {
		return
	}
	c.peerTyping = on
	c.emitLocked(Update{Kind: KindTyping, PeerTyping: on})
}

func (c *Controller) navigateLocked(r route.Route) {
	if c.exit != nil {
		return
	}
	c.exit = &r
	c.emitLocked(Update{Kind: KindNavigate, Route: r})
	c.haltLocked()
}

func (c *Controller) haltLocked() {
	c.cancel()
	if c.typingTimer != nil {
		c.typingTimer.Stop()
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	if c.sub != nil {
		c.sub.Close()
	}
}

func (c *Controller) fail(err error, text string) {
	c.log.WithError(err).Warn(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.noticeLocked(Error, text)
	}
}

func (c *Controller) noticeLocked(level Level, text string) {
	c.emitLocked(Update{Kind: KindNotice, Notice: Notice{Level: level, Text: text}})
}

func (c *Controller) emitMessagesLocked() {
	c.emitLocked(Update{Kind: KindMessages, Messages: append([]models.Message(nil), c.messages...)})
}

func (c *Controller) emitCountdownLocked() {
	c.emitLocked(Update{Kind: KindCountdown, Remaining: max(c.remainingLocked(), 0)})
}

func (c *Controller) emitOfferLocked() {
	var o *models.ExtensionOffer
	if c.offer != nil {
		cp := *c.offer
		o = &cp
	}
	c.emitLocked(Update{Kind: KindOffer, Offer: o})
}

func (c *Controller) emitLocked(u Update) {
	if !c.closed {
		c.out.Put(u)
	}
}

// broadcast is fire-and-forget: failures are logged and never retried.
func (c *Controller) broadcast(ctx context.Context, sub realtime.Subscription, event string, payload any) {
	if sub == nil {
		return
	}
	if err := sub.Broadcast(ctx, event, payload); err != nil {
		c.log.WithError(err).WithField("event", event).Debug("broadcast dropped")
	}
}

// mergeCancel returns a context cancelled when either parent is.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
