package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"onetalk/internal/chat"
	"onetalk/internal/models"
)

// sessionScreen renders a chat.Controller. Controller updates arrive through
// waitUpdate, one at a time, so the screen only changes inside Update.
type sessionScreen struct {
	app  *App
	ctrl *chat.Controller

	messages   []models.Message
	remaining  time.Duration
	peerTyping bool
	offer      *models.ExtensionOffer
	picking    bool

	view  viewport.Model
	input textinput.Model
}

type chatUpdateMsg struct{ u chat.Update }

type chatClosedMsg struct{}

type actionDoneMsg struct{ err error }

// waitUpdate delivers the next controller update as a message.
func waitUpdate(ch <-chan chat.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return chatClosedMsg{}
		}
		return chatUpdateMsg{u: u}
	}
}

func newSessionScreen(app *App, sessionID string) *sessionScreen {
	ctrl := chat.New(chat.Config{
		Backend:   app.cfg.API,
		Payments:  app.cfg.Payments,
		Clock:     app.cfg.Clock,
		Me:        app.cfg.Account.Profile(),
		SessionID: sessionID,
		Log:       app.cfg.Log.WithField("component", "chat"),
	})
	in := textinput.New()
	in.Placeholder = "type a message"
	in.CharLimit = 4096
	in.Focus()
	return &sessionScreen{
		app:   app,
		ctrl:  ctrl,
		view:  viewport.New(80, 16),
		input: in,
	}
}

func (s *sessionScreen) Init() tea.Cmd {
	ctrl, ctx := s.ctrl, s.app.ctx
	return tea.Batch(
		textinput.Blink,
		waitUpdate(ctrl.Updates()),
		func() tea.Msg {
			// failures surface through the update stream
			_ = ctrl.Start(ctx)
			return nil
		},
	)
}

func (s *sessionScreen) close() { s.ctrl.Close() }

func (s *sessionScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case chatUpdateMsg:
		return s, tea.Batch(s.apply(msg.u), waitUpdate(s.ctrl.Updates()))
	case chatClosedMsg:
		return s, nil
	case actionDoneMsg:
		if msg.err != nil {
			s.app.cfg.Log.WithError(msg.err).Debug("chat action")
		}
		return s, nil
	case tea.WindowSizeMsg:
		s.view.Width = msg.Width
		s.view.Height = max(msg.Height-10, 4)
		s.input.Width = max(msg.Width-4, 10)
		s.render()
		return s, nil
	case tea.KeyMsg:
		return s, s.key(msg)
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *sessionScreen) key(msg tea.KeyMsg) tea.Cmd {
	ctrl, ctx := s.ctrl, s.app.ctx
	if s.picking {
		s.picking = false
		if msg.Type == tea.KeyRunes && len(msg.Runes) == 1 {
			i := int(msg.Runes[0] - '1')
			if i >= 0 && i < len(chat.DefaultPackages) {
				p := chat.DefaultPackages[i]
				return func() tea.Msg { return actionDoneMsg{err: ctrl.RequestExtension(ctx, p)} }
			}
		}
		return nil
	}
	switch {
	case key.Matches(msg, keys.End):
		return func() tea.Msg { return actionDoneMsg{err: ctrl.End(ctx)} }
	case key.Matches(msg, keys.Extend) && ctrl.IsSeeker():
		s.picking = true
		return nil
	case key.Matches(msg, keys.Accept) && s.offer != nil:
		return func() tea.Msg { return actionDoneMsg{err: ctrl.AcceptExtension(ctx)} }
	case key.Matches(msg, keys.Decline) && s.offer != nil:
		return func() tea.Msg { return actionDoneMsg{err: ctrl.DeclineExtension(ctx)} }
	case msg.Type == tea.KeyPgUp, msg.Type == tea.KeyPgDown:
		var cmd tea.Cmd
		s.view, cmd = s.view.Update(msg)
		return cmd
	case key.Matches(msg, keys.Select):
		text := s.input.Value()
		s.input.Reset()
		return func() tea.Msg {
			err := ctrl.Send(ctx, text)
			if errors.Is(err, chat.ErrEmptyMessage) {
				err = nil
			}
			return actionDoneMsg{err: err}
		}
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace || msg.Type == tea.KeyBackspace {
		cmd = tea.Batch(cmd, func() tea.Msg { ctrl.Typing(ctx); return nil })
	}
	return cmd
}

func (s *sessionScreen) apply(u chat.Update) tea.Cmd {
	switch u.Kind {
	case chat.KindMessages:
		s.messages = u.Messages
		s.render()
	case chat.KindCountdown:
		s.remaining = u.Remaining
	case chat.KindTyping:
		s.peerTyping = u.PeerTyping
	case chat.KindOffer:
		s.offer = u.Offer
	case chat.KindDraft:
		if s.input.Value() == "" {
			s.input.SetValue(u.Draft)
		}
	case chat.KindNotice:
		if u.Notice.Level == chat.Error {
			return failure(u.Notice.Text)
		}
		return info(u.Notice.Text)
	case chat.KindNavigate:
		return navigate(u.Route, "")
	}
	return nil
}

func (s *sessionScreen) render() {
	me := s.app.cfg.Account.Profile().ID
	var b strings.Builder
	for _, m := range s.messages {
		stamp := faintStyle.Render(m.CreatedAt.Local().Format("15:04"))
		if m.ProfileID == me {
			b.WriteString(stamp + " " + selfStyle.Render("you") + ": " + m.Content + "\n")
		} else {
			name := m.SenderNickname
			if name == "" {
				name = "them"
			}
			b.WriteString(stamp + " " + peerStyle.Render(name) + ": " + m.Content + "\n")
		}
	}
	s.view.SetContent(b.String())
	s.view.GotoBottom()
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func (s *sessionScreen) View() string {
	var b strings.Builder
	timer := timerStyle
	if s.remaining < 2*time.Minute {
		timer = lowTimeStyle
	}
	b.WriteString(headingStyle.Render("Chat") + "  " + timer.Render(formatRemaining(s.remaining)+" left") + "\n\n")
	b.WriteString(s.view.View() + "\n")
	if s.peerTyping {
		b.WriteString(faintStyle.Render("typing…"))
	}
	b.WriteString("\n")
	switch {
	case s.offer != nil:
		p := chat.Package{Minutes: s.offer.Minutes, PriceCents: s.offer.PriceCents}
		b.WriteString(offerStyle.Render("They'd like "+p.String()+".\n"+help(keys.Accept, keys.Decline)) + "\n")
	case s.picking:
		var opts []string
		for i, p := range chat.DefaultPackages {
			opts = append(opts, fmt.Sprintf("%d) %s", i+1, p))
		}
		b.WriteString(offerStyle.Render("Add time:\n"+strings.Join(opts, "\n")+"\n"+helpStyle.Render("any other key cancels")) + "\n")
	}
	b.WriteString(s.input.View() + "\n\n")
	bindings := []key.Binding{keys.Select, keys.End}
	if s.ctrl.IsSeeker() {
		bindings = append(bindings, keys.Extend)
	}
	b.WriteString(help(bindings...))
	return b.String()
}
