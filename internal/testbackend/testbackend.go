// Package testbackend is an in-memory OneTalk backend for controller tests.
// It follows the API's rules for sessions, messages, and real-time fan-out,
// and records every call so tests can assert what went over the wire.
package testbackend

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"onetalk/internal/client"
	"onetalk/internal/clock"
	"onetalk/internal/mailbox"
	"onetalk/internal/models"
	"onetalk/internal/realtime"
)

type Server struct {
	clock clock.Clock

	mu           sync.Mutex
	profiles     map[string]models.Profile
	sessions     map[string]models.ChatSession
	messages     []models.Message
	transactions []models.Transaction
	nextMessage  int64
	rooms        map[string]map[*subscription]bool
	calls        map[string]int
	failures     map[string]error
}

func New(clk clock.Clock) *Server {
	return &Server{
		clock:    clk,
		profiles: make(map[string]models.Profile),
		sessions: make(map[string]models.ChatSession),
		rooms:    make(map[string]map[*subscription]bool),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

// AddProfile stores p, assigning an id when it has none.
func (s *Server) AddProfile(p models.Profile) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Role == "" {
		p.Role = models.RoleSeeker
	}
	p.CreatedAt = s.clock.Now()
	s.profiles[p.ID] = p
	return p
}

// PutSession stores cs as is, overwriting any session with the same id.
func (s *Server) PutSession(cs models.ChatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[cs.ID] = cs
}

func (s *Server) Session(id string) (models.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.sessions[id]
	return cs, ok
}

func (s *Server) Transactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Transaction(nil), s.transactions...)
}

// Calls counts invocations of a Conn method by name, e.g. "SendMessage".
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// TotalCalls counts every Conn method invocation.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// FailNext makes the next call to method return err.
func (s *Server) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// Publish delivers ev to everyone subscribed to its session.
func (s *Server) Publish(ev realtime.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishLocked(ev)
}

func (s *Server) Subscribers(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms[sessionID])
}

// As returns a connection acting as profileID.
func (s *Server) As(profileID string) *Conn { return &Conn{srv: s, me: profileID} }

func (s *Server) enterLocked(method string) error {
	s.calls[method]++
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

func (s *Server) publishLocked(ev realtime.Event) {
	for sub := range s.rooms[ev.SessionID] {
		sub.box.Put(ev)
	}
}

func (s *Server) sessionUpdatedLocked(cs models.ChatSession) {
	ev, _ := realtime.NewSessionUpdated(cs)
	s.publishLocked(ev)
}

func (s *Server) withNicknameLocked(m models.Message) models.Message {
	m.SenderNickname = s.profiles[m.ProfileID].Nickname
	return m
}

func apiErr(status int, format string, args ...any) error {
	return &client.APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// Conn is one user's view of the server. It satisfies the controller
// backends the same way *client.Client does.
type Conn struct {
	srv *Server
	me  string
}

func (c *Conn) Me(ctx context.Context) (models.Profile, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("Me"); err != nil {
		return models.Profile{}, err
	}
	p, ok := s.profiles[c.me]
	if !ok {
		return models.Profile{}, apiErr(http.StatusNotFound, "profile not found")
	}
	return p, nil
}

func (c *Conn) SetAvailable(ctx context.Context, available bool) (models.Profile, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("SetAvailable"); err != nil {
		return models.Profile{}, err
	}
	p, ok := s.profiles[c.me]
	if !ok {
		return models.Profile{}, apiErr(http.StatusNotFound, "profile not found")
	}
	p.IsAvailable = available
	s.profiles[c.me] = p
	return p, nil
}

func (c *Conn) CreateSession(ctx context.Context, topicID *string, description string) (models.ChatSession, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("CreateSession"); err != nil {
		return models.ChatSession{}, err
	}
	cs := models.ChatSession{
		ID:              uuid.NewString(),
		SeekerID:        c.me,
		TopicID:         topicID,
		Description:     strings.TrimSpace(description),
		Status:          models.StatusWaiting,
		DurationMinutes: 30,
		CreatedAt:       s.clock.Now(),
	}
	s.sessions[cs.ID] = cs
	return cs, nil
}

func (c *Conn) GetSession(ctx context.Context, id string) (models.ChatSession, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("GetSession"); err != nil {
		return models.ChatSession{}, err
	}
	cs, ok := s.sessions[id]
	if !ok {
		return models.ChatSession{}, apiErr(http.StatusNotFound, "session not found")
	}
	if !cs.IsParticipant(c.me) && cs.Status != models.StatusWaiting {
		return models.ChatSession{}, apiErr(http.StatusForbidden, "not a participant in this session")
	}
	return cs, nil
}

func (c *Conn) CompleteSession(ctx context.Context, id string) (models.ChatSession, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("CompleteSession"); err != nil {
		return models.ChatSession{}, err
	}
	cs, ok := s.sessions[id]
	if !ok {
		return models.ChatSession{}, apiErr(http.StatusNotFound, "session not found")
	}
	if !cs.IsParticipant(c.me) {
		return models.ChatSession{}, apiErr(http.StatusForbidden, "not a participant in this session")
	}
	if cs.Status == models.StatusCompleted {
		return cs, nil
	}
	if err := models.CheckTransition(cs.Status, models.StatusCompleted); err != nil {
		return models.ChatSession{}, apiErr(http.StatusConflict, "%v", err)
	}
	now := s.clock.Now()
	cs.Status = models.StatusCompleted
	cs.EndedAt = &now
	s.sessions[id] = cs
	for _, pid := range []string{cs.SeekerID, cs.PeerOf(cs.SeekerID)} {
		if p, ok := s.profiles[pid]; ok {
			p.TotalSessions++
			s.profiles[pid] = p
		}
	}
	s.sessionUpdatedLocked(cs)
	return cs, nil
}

// Matchmake claims the oldest waiting session not owned by the listener.
func (c *Conn) Matchmake(ctx context.Context, listenerProfileID string) (string, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("Matchmake"); err != nil {
		return "", err
	}
	if listenerProfileID != c.me {
		return "", apiErr(http.StatusForbidden, "can only matchmake for your own profile")
	}
	if s.profiles[c.me].ListenerStatus != models.ListenerVerified {
		return "", apiErr(http.StatusForbidden, "listener is not verified")
	}
	var waiting []models.ChatSession
	for _, cs := range s.sessions {
		if cs.Status == models.StatusWaiting && cs.SeekerID != c.me {
			waiting = append(waiting, cs)
		}
	}
	if len(waiting) == 0 {
		return "", nil
	}
	sort.Slice(waiting, func(i, j int) bool { return waiting[i].CreatedAt.Before(waiting[j].CreatedAt) })
	cs := waiting[0]
	listener := c.me
	cs.Status = models.StatusActive
	cs.ListenerID = &listener
	cs.CreatedAt = s.clock.Now()
	s.sessions[cs.ID] = cs
	s.sessionUpdatedLocked(cs)
	return cs.ID, nil
}

func (c *Conn) ExtendSession(ctx context.Context, sessionID string, minutes int) (models.ChatSession, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("ExtendSession"); err != nil {
		return models.ChatSession{}, err
	}
	if minutes <= 0 {
		return models.ChatSession{}, apiErr(http.StatusBadRequest, "minutes to add must be positive")
	}
	cs, ok := s.sessions[sessionID]
	if !ok {
		return models.ChatSession{}, apiErr(http.StatusNotFound, "session not found")
	}
	if !cs.IsParticipant(c.me) {
		return models.ChatSession{}, apiErr(http.StatusForbidden, "not a participant in this session")
	}
	if cs.Status != models.StatusActive {
		return models.ChatSession{}, apiErr(http.StatusConflict, "session is not active")
	}
	cs.ExtendedDurationMinutes += minutes
	s.sessions[sessionID] = cs
	s.sessionUpdatedLocked(cs)
	return cs, nil
}

func (c *Conn) RecordTransaction(ctx context.Context, req models.TransactionRequest) (models.Transaction, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("RecordTransaction"); err != nil {
		return models.Transaction{}, err
	}
	if req.Minutes <= 0 || req.AmountCents <= 0 {
		return models.Transaction{}, apiErr(http.StatusBadRequest, "minutes and amount must be positive")
	}
	if req.PayerID == "" {
		req.PayerID = c.me
	}
	cs, ok := s.sessions[req.SessionID]
	if !ok {
		return models.Transaction{}, apiErr(http.StatusNotFound, "session not found")
	}
	if !cs.IsParticipant(c.me) || !cs.IsParticipant(req.PayerID) {
		return models.Transaction{}, apiErr(http.StatusForbidden, "not a participant in this session")
	}
	tx := models.Transaction{
		ID:          uuid.NewString(),
		SessionID:   req.SessionID,
		ProfileID:   req.PayerID,
		Minutes:     req.Minutes,
		AmountCents: req.AmountCents,
		Kind:        models.TransactionExtension,
		Reference:   req.Reference,
		CreatedAt:   s.clock.Now(),
	}
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (c *Conn) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("ListMessages"); err != nil {
		return nil, err
	}
	cs, ok := s.sessions[sessionID]
	if !ok {
		return nil, apiErr(http.StatusNotFound, "session not found")
	}
	if !cs.IsParticipant(c.me) {
		return nil, apiErr(http.StatusForbidden, "not a participant in this session")
	}
	out := []models.Message{}
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, s.withNicknameLocked(m))
		}
	}
	return out, nil
}

func (c *Conn) GetMessage(ctx context.Context, id int64) (models.Message, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("GetMessage"); err != nil {
		return models.Message{}, err
	}
	for _, m := range s.messages {
		if m.ID == id {
			if !s.sessions[m.SessionID].IsParticipant(c.me) {
				return models.Message{}, apiErr(http.StatusForbidden, "not a participant in this session")
			}
			return s.withNicknameLocked(m), nil
		}
	}
	return models.Message{}, apiErr(http.StatusNotFound, "message not found")
}

func (c *Conn) SendMessage(ctx context.Context, sessionID, content string) (models.Message, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("SendMessage"); err != nil {
		return models.Message{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, apiErr(http.StatusBadRequest, "message content is empty")
	}
	cs, ok := s.sessions[sessionID]
	if !ok {
		return models.Message{}, apiErr(http.StatusNotFound, "session not found")
	}
	if !cs.IsParticipant(c.me) {
		return models.Message{}, apiErr(http.StatusForbidden, "not a participant in this session")
	}
	if cs.Status != models.StatusActive {
		return models.Message{}, apiErr(http.StatusConflict, "session is not active")
	}
	s.nextMessage++
	m := models.Message{
		ID:        s.nextMessage,
		SessionID: sessionID,
		ProfileID: c.me,
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	s.messages = append(s.messages, m)
	m = s.withNicknameLocked(m)
	ev, _ := realtime.NewMessageInserted(m)
	s.publishLocked(ev)
	return m, nil
}

// Subscribe joins the session room. Like the real server, outsiders are
// refused and broadcasts echo back to the sender.
func (c *Conn) Subscribe(ctx context.Context, sessionID string) (realtime.Subscription, error) {
	s := c.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("Subscribe"); err != nil {
		return nil, err
	}
	cs, ok := s.sessions[sessionID]
	if !ok || !cs.IsParticipant(c.me) {
		return nil, apiErr(http.StatusForbidden, "not in session")
	}
	sub := &subscription{srv: s, sessionID: sessionID, profileID: c.me, box: mailbox.New[realtime.Event]()}
	if s.rooms[sessionID] == nil {
		s.rooms[sessionID] = make(map[*subscription]bool)
	}
	s.rooms[sessionID][sub] = true
	return sub, nil
}

type subscription struct {
	srv       *Server
	sessionID string
	profileID string
	box       *mailbox.Mailbox[realtime.Event]
	once      sync.Once
}

func (sub *subscription) Events() <-chan realtime.Event { return sub.box.C() }

func (sub *subscription) Broadcast(ctx context.Context, event string, payload any) error {
	s := sub.srv
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked("Broadcast"); err != nil {
		return err
	}
	if !s.rooms[sub.sessionID][sub] {
		return apiErr(http.StatusGone, "subscription closed")
	}
	if !realtime.ValidBroadcast(event) {
		return nil
	}
	ev, err := realtime.NewBroadcast(sub.sessionID, sub.profileID, event, payload)
	if err != nil {
		return err
	}
	s.publishLocked(ev)
	return nil
}

func (sub *subscription) Close() error {
	sub.once.Do(func() {
		s := sub.srv
		s.mu.Lock()
		delete(s.rooms[sub.sessionID], sub)
		s.mu.Unlock()
		sub.box.Close()
	})
	return nil
}
