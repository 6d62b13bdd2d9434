package tui

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"onetalk/internal/client"
	"onetalk/internal/models"
	"onetalk/internal/route"
)

type historyScreen struct {
	app     *App
	entries []models.HistoryEntry
	loaded  bool
}

type historyMsg struct {
	entries []models.HistoryEntry
	err     error
}

func newHistory(app *App) *historyScreen { return &historyScreen{app: app} }

func (s *historyScreen) Init() tea.Cmd {
	api, ctx := s.app.cfg.API, s.app.ctx
	return func() tea.Msg {
		e, err := api.History(ctx)
		return historyMsg{entries: e, err: err}
	}
}

func (s *historyScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyMsg:
		s.loaded = true
		if msg.err != nil {
			return s, failure("Could not load your past chats.")
		}
		s.entries = msg.entries
	case tea.KeyMsg:
		if key.Matches(msg, keys.Back) || key.Matches(msg, keys.Select) {
			return s, navigate(route.To(route.Dashboard), "")
		}
	}
	return s, nil
}

func (s *historyScreen) View() string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Past chats") + "\n\n")
	switch {
	case !s.loaded:
		b.WriteString(faintStyle.Render("loading…") + "\n")
	case len(s.entries) == 0:
		b.WriteString("No chats yet.\n")
	}
	me := s.app.cfg.Account.Profile().Nickname
	for _, e := range s.entries {
		topic := "no topic"
		if e.TopicName != nil {
			topic = *e.TopicName
		}
		with := "nobody"
		switch {
		case e.SeekerNickname != nil && *e.SeekerNickname != me:
			with = *e.SeekerNickname
		case e.ListenerNickname != nil:
			with = *e.ListenerNickname
		}
		b.WriteString(fmt.Sprintf("%s  %-20s with %s\n", e.CreatedAt.Local().Format("Jan 2 15:04"), topic, with))
	}
	b.WriteString("\n" + help(keys.Back))
	return b.String()
}

// ratingScreen collects the seeker's 1-5 score for a finished chat.
type ratingScreen struct {
	app       *App
	sessionID string
	score     int
	comment   textinput.Model
	busy      bool
}

type ratedMsg struct{ err error }

func newRating(app *App, sessionID string) *ratingScreen {
	c := textinput.New()
	c.Placeholder = "anything you'd like to add? (optional)"
	c.CharLimit = 500
	c.Width = 60
	c.Focus()
	return &ratingScreen{app: app, sessionID: sessionID, score: 5, comment: c}
}

func (s *ratingScreen) Init() tea.Cmd { return textinput.Blink }

func (s *ratingScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ratedMsg:
		s.busy = false
		switch {
		case client.IsStatus(msg.err, http.StatusConflict):
			return s, navigate(route.To(route.Dashboard), "You already rated this chat.")
		case msg.err != nil:
			s.app.cfg.Log.WithError(msg.err).Warn("rate session")
			return s, failure("Could not save your rating.")
		}
		return s, navigate(route.To(route.Dashboard), "Thanks for your feedback.")
	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		switch {
		case msg.Type == tea.KeyLeft:
			s.score = max(s.score-1, 1)
			return s, nil
		case msg.Type == tea.KeyRight:
			s.score = min(s.score+1, 5)
			return s, nil
		case key.Matches(msg, keys.Back):
			return s, navigate(route.To(route.Dashboard), "")
		case key.Matches(msg, keys.Select):
			s.busy = true
			api, ctx, id, score, comment := s.app.cfg.API, s.app.ctx, s.sessionID, s.score, strings.TrimSpace(s.comment.Value())
			return s, func() tea.Msg {
				_, err := api.RateSession(ctx, id, score, comment)
				return ratedMsg{err: err}
			}
		}
	}
	var cmd tea.Cmd
	s.comment, cmd = s.comment.Update(msg)
	return s, cmd
}

func (s *ratingScreen) View() string {
	stars := strings.Repeat("★", s.score) + strings.Repeat("☆", 5-s.score)
	return headingStyle.Render("How was your chat?") + "\n\n" +
		selectStyle.Render(stars) + helpStyle.Render("  ←/→ to change") + "\n\n" +
		s.comment.View() + "\n\n" +
		help(keys.Select) + helpStyle.Render(" to submit • esc to skip")
}
