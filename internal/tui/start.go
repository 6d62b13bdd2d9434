package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"onetalk/internal/models"
	"onetalk/internal/route"
	"onetalk/internal/waiting"
)

// startScreen picks an optional topic and a short description, then opens a
// waiting session.
type startScreen struct {
	app    *App
	topics []models.Topic
	cursor int // 0 is "no topic"
	desc   textinput.Model
	busy   bool
}

type topicsMsg struct {
	topics []models.Topic
	err    error
}

type createdMsg struct {
	s   models.ChatSession
	err error
}

func newStart(app *App) *startScreen {
	d := textinput.New()
	d.Placeholder = "what's on your mind? (optional)"
	d.CharLimit = 1000
	d.Width = 60
	d.Focus()
	return &startScreen{app: app, desc: d}
}

func (s *startScreen) Init() tea.Cmd {
	api, ctx := s.app.cfg.API, s.app.ctx
	return tea.Batch(textinput.Blink, func() tea.Msg {
		t, err := api.Topics(ctx)
		return topicsMsg{topics: t, err: err}
	})
}

func (s *startScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case topicsMsg:
		if msg.err != nil {
			return s, failure("Could not load topics. You can still start a chat.")
		}
		s.topics = msg.topics
		return s, nil
	case createdMsg:
		s.busy = false
		if msg.err != nil {
			s.app.cfg.Log.WithError(msg.err).Warn("create session")
			return s, failure("Could not start a chat. Please try again.")
		}
		return s, navigate(route.ToWaiting(msg.s.ID), "")
	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		switch {
		case key.Matches(msg, keys.Back):
			return s, navigate(route.To(route.Dashboard), "")
		case msg.Type == tea.KeyUp:
			s.cursor = max(s.cursor-1, 0)
			return s, nil
		case msg.Type == tea.KeyDown:
			s.cursor = min(s.cursor+1, len(s.topics))
			return s, nil
		case key.Matches(msg, keys.Select):
			return s, s.create()
		}
	}
	var cmd tea.Cmd
	s.desc, cmd = s.desc.Update(msg)
	return s, cmd
}

func (s *startScreen) create() tea.Cmd {
	s.busy = true
	var topicID *string
	if s.cursor > 0 && s.cursor <= len(s.topics) {
		id := s.topics[s.cursor-1].ID
		topicID = &id
	}
	api, ctx, desc := s.app.cfg.API, s.app.ctx, strings.TrimSpace(s.desc.Value())
	return func() tea.Msg {
		cs, err := api.CreateSession(ctx, topicID, desc)
		return createdMsg{s: cs, err: err}
	}
}

func (s *startScreen) View() string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Start a chat") + "\n\n")
	b.WriteString("Topic\n")
	labels := []string{"no particular topic"}
	for _, t := range s.topics {
		labels = append(labels, t.Name)
	}
	for i, l := range labels {
		if i == s.cursor {
			b.WriteString(selectStyle.Render("> "+l) + "\n")
		} else {
			b.WriteString("  " + l + "\n")
		}
	}
	b.WriteString("\n" + s.desc.View() + "\n\n")
	if s.busy {
		b.WriteString(faintStyle.Render("starting…"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ topic • ") + help(keys.Select, keys.Back))
	}
	return b.String()
}

// waitingScreen shows a spinner until a listener joins or the seeker gives up.
type waitingScreen struct {
	app       *App
	sessionID string
	ctrl      *waiting.Controller
	spin      spinner.Model
	cancel    context.CancelFunc
	ctx       context.Context
}

type waitedMsg struct {
	res waiting.Result
	err error
}

type cancelledMsg struct{ err error }

func newWaitingScreen(app *App, sessionID string) *waitingScreen {
	ctx, cancel := context.WithCancel(app.ctx)
	return &waitingScreen{
		app:       app,
		sessionID: sessionID,
		ctrl:      waiting.New(app.cfg.API, sessionID),
		spin:      spinner.New(spinner.WithSpinner(spinner.Dot)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *waitingScreen) Init() tea.Cmd {
	ctrl, ctx := s.ctrl, s.ctx
	return tea.Batch(s.spin.Tick, func() tea.Msg {
		r, err := ctrl.Wait(ctx)
		return waitedMsg{res: r, err: err}
	})
}

func (s *waitingScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case waitedMsg:
		switch {
		case errors.Is(msg.err, context.Canceled):
			return s, nil
		case errors.Is(msg.err, waiting.ErrConnectionLost):
			return s, navigateErr(route.To(route.Dashboard), "Lost the connection while waiting. Your request is still open.")
		case msg.err != nil && msg.res.Route.Name == "":
			s.app.cfg.Log.WithError(msg.err).Warn("waiting room")
			return s, navigateErr(route.To(route.Dashboard), "Could not watch your chat request.")
		case msg.err != nil:
			return s, navigateErr(msg.res.Route, msg.res.Notice)
		}
		return s, navigate(msg.res.Route, msg.res.Notice)
	case cancelledMsg:
		if msg.err != nil {
			return s, failure("Could not cancel the request.")
		}
		return s, navigate(route.To(route.Dashboard), "Your chat request was cancelled.")
	case tea.KeyMsg:
		if key.Matches(msg, keys.Back) {
			s.cancel()
			ctrl, ctx := s.ctrl, s.app.ctx
			return s, func() tea.Msg { return cancelledMsg{err: ctrl.Cancel(ctx)} }
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spin, cmd = s.spin.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *waitingScreen) close() { s.cancel() }

func (s *waitingScreen) View() string {
	return s.spin.View() + " Looking for a listener…\n\n" +
		faintStyle.Render("Someone will join you soon. Keep this window open.") + "\n\n" +
		help(keys.Back) + helpStyle.Render(" to cancel the request")
}
