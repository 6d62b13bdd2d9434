package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"onetalk/internal/models"
	"onetalk/internal/queue"
	"onetalk/internal/route"
)

type queueScreen struct {
	app  *App
	ctrl *queue.Controller
	spin spinner.Model
	busy bool
}

type foundMsg struct {
	to  route.Route
	err error
}

type availabilityMsg struct {
	p   models.Profile
	err error
}

func newQueueScreen(app *App) *queueScreen {
	return &queueScreen{
		app:  app,
		ctrl: queue.New(app.cfg.API, app.cfg.Account),
		spin: spinner.New(spinner.WithSpinner(spinner.MiniDot)),
	}
}

func (s *queueScreen) Init() tea.Cmd { return nil }

func (s *queueScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case foundMsg:
		s.busy = false
		switch {
		case errors.Is(msg.err, queue.ErrNotVerified), errors.Is(msg.err, queue.ErrQueueEmpty):
			return s, info(msg.err.Error())
		case msg.err != nil:
			s.app.cfg.Log.WithError(msg.err).Warn("matchmake")
			return s, failure("Could not reach the queue. Please try again.")
		}
		return s, navigate(msg.to, "You're now chatting with someone.")
	case availabilityMsg:
		if msg.err != nil {
			return s, failure("Could not update your availability.")
		}
		if msg.p.IsAvailable {
			return s, info("You're marked as available.")
		}
		return s, info("You're marked as away.")
	case spinner.TickMsg:
		if !s.busy {
			return s, nil
		}
		var cmd tea.Cmd
		s.spin, cmd = s.spin.Update(msg)
		return s, cmd
	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		ctrl, ctx := s.ctrl, s.app.ctx
		switch {
		case key.Matches(msg, keys.Back):
			return s, navigate(route.To(route.Dashboard), "")
		case key.Matches(msg, keys.Select):
			s.busy = true
			return s, tea.Batch(s.spin.Tick, func() tea.Msg {
				r, err := ctrl.FindChat(ctx)
				return foundMsg{to: r, err: err}
			})
		case key.Matches(msg, keys.Toggle):
			want := !s.app.cfg.Account.Profile().IsAvailable
			return s, func() tea.Msg {
				p, err := ctrl.SetAvailable(ctx, want)
				return availabilityMsg{p: p, err: err}
			}
		}
	}
	return s, nil
}

func (s *queueScreen) View() string {
	p := s.app.cfg.Account.Profile()
	var b strings.Builder
	b.WriteString(headingStyle.Render("Listener queue") + "\n\n")
	if p.ListenerStatus != models.ListenerVerified {
		b.WriteString(faintStyle.Render("Your listener account is "+string(p.ListenerStatus)+". You can take chats once it is verified.") + "\n\n")
	}
	if p.IsAvailable {
		b.WriteString("Status: available\n\n")
	} else {
		b.WriteString("Status: away\n\n")
	}
	if s.busy {
		b.WriteString(s.spin.View() + " Finding someone who's waiting…\n\n")
	}
	b.WriteString(help(keys.Select, keys.Toggle, keys.Back))
	return b.String()
}
