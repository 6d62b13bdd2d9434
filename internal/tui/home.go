package tui

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"onetalk/internal/auth"
	"onetalk/internal/client"
	"onetalk/internal/models"
	"onetalk/internal/route"
)

type landing struct{}

func newLanding() landing { return landing{} }

func (landing) Init() tea.Cmd { return nil }

func (l landing) Update(msg tea.Msg) (screen, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Select) {
		return l, navigate(route.To(route.Auth), "")
	}
	return l, nil
}

func (landing) View() string {
	return headingStyle.Render("Someone is here to listen.") + "\n\n" +
		"Talk anonymously with a trained volunteer. No real names, no history\n" +
		"beyond what you choose to keep.\n\n" +
		help(keys.Select) + helpStyle.Render(" to sign in or create an account")
}

// authScreen signs in or signs up. Input is validated locally before any
// request is made.
type authScreen struct {
	app      *App
	signUp   bool
	listener bool
	focus    int
	inputs   [2]textinput.Model
	busy     bool
}

type authDoneMsg struct {
	res client.AuthResult
	err error
}

func newAuth(app *App) *authScreen {
	nick := textinput.New()
	nick.Placeholder = "nickname"
	nick.CharLimit = auth.MaxNicknameLen
	nick.Focus()
	pw := textinput.New()
	pw.Placeholder = "password"
	pw.EchoMode = textinput.EchoPassword
	return &authScreen{app: app, inputs: [2]textinput.Model{nick, pw}}
}

func (s *authScreen) Init() tea.Cmd { return textinput.Blink }

func (s *authScreen) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		s.busy = false
		if msg.err != nil {
			s.app.cfg.Log.WithError(msg.err).Info("authentication failed")
			return s, failure(msg.err.Error())
		}
		s.app.cfg.Account.SignedIn(msg.res.Token, msg.res.Profile)
		s.app.persist(msg.res.Token)
		return s, navigate(route.To(route.Dashboard), "Welcome, "+msg.res.Profile.Nickname+".")

	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		switch {
		case key.Matches(msg, keys.Switch):
			s.inputs[s.focus].Blur()
			s.focus = 1 - s.focus
			return s, s.inputs[s.focus].Focus()
		case msg.Type == tea.KeyCtrlS:
			s.signUp = !s.signUp
			return s, nil
		case msg.Type == tea.KeyCtrlL && s.signUp:
			s.listener = !s.listener
			return s, nil
		case key.Matches(msg, keys.Back):
			return s, navigate(route.To(route.Landing), "")
		case key.Matches(msg, keys.Select):
			return s, s.submit()
		}
	}
	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(msg)
	return s, cmd
}

func (s *authScreen) submit() tea.Cmd {
	nickname := strings.TrimSpace(s.inputs[0].Value())
	password := s.inputs[1].Value()
	if err := auth.ValidateNickname(nickname); err != nil {
		return failure(err.Error())
	}
	if err := auth.ValidatePassword(password); err != nil {
		return failure(err.Error())
	}
	s.busy = true
	api, ctx, signUp, listener := s.app.cfg.API, s.app.ctx, s.signUp, s.listener
	return func() tea.Msg {
		var res client.AuthResult
		var err error
		if signUp {
			res, err = api.SignUp(ctx, nickname, password, listener)
		} else {
			res, err = api.SignIn(ctx, nickname, password)
		}
		return authDoneMsg{res: res, err: err}
	}
}

func (s *authScreen) View() string {
	var b strings.Builder
	if s.signUp {
		b.WriteString(headingStyle.Render("Create an account"))
	} else {
		b.WriteString(headingStyle.Render("Sign in"))
	}
	b.WriteString("\n\n")
	b.WriteString(s.inputs[0].View() + "\n")
	b.WriteString(s.inputs[1].View() + "\n")
	if s.signUp {
		box := "[ ]"
		if s.listener {
			box = "[x]"
		}
		b.WriteString("\n" + box + " I want to volunteer as a listener (ctrl+l)\n")
	}
	b.WriteString("\n")
	if s.busy {
		b.WriteString(faintStyle.Render("working…"))
	} else {
		mode := "ctrl+s create an account"
		if s.signUp {
			mode = "ctrl+s sign in instead"
		}
		b.WriteString(help(keys.Select, keys.Switch, keys.Back) + helpStyle.Render(" • "+mode))
	}
	return b.String()
}

type dashboardItem struct {
	label string
	to    route.Route
}

// dashboard refreshes the profile on entry and offers the actions the
// user's role allows.
type dashboard struct {
	app    *App
	cursor int
}

type profileMsg struct {
	p   models.Profile
	err error
}

func newDashboard(app *App) *dashboard { return &dashboard{app: app} }

func (d *dashboard) Init() tea.Cmd {
	api, ctx := d.app.cfg.API, d.app.ctx
	return func() tea.Msg {
		p, err := api.Me(ctx)
		return profileMsg{p: p, err: err}
	}
}

func (d *dashboard) items() []dashboardItem {
	p := d.app.cfg.Account.Profile()
	var out []dashboardItem
	if p.Role == models.RoleSeeker {
		out = append(out, dashboardItem{"Talk to someone", route.To(route.ChatStart)})
	} else {
		out = append(out, dashboardItem{"Listener queue", route.To(route.Queue)})
	}
	out = append(out,
		dashboardItem{"Past chats", route.To(route.History)},
		dashboardItem{"Sign out", route.To(route.Landing)},
	)
	return out
}

func (d *dashboard) Update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case profileMsg:
		if msg.err != nil {
			if client.IsStatus(msg.err, http.StatusUnauthorized) {
				d.app.cfg.Account.SignOut()
				d.app.persist("")
				return d, navigateErr(route.To(route.Auth), "Your session expired. Please sign in again.")
			}
			return d, failure("Could not refresh your profile.")
		}
		d.app.cfg.Account.UpdateProfile(msg.p)
	case tea.KeyMsg:
		items := d.items()
		switch {
		case key.Matches(msg, keys.Up):
			d.cursor = max(d.cursor-1, 0)
		case key.Matches(msg, keys.Down):
			d.cursor = min(d.cursor+1, len(items)-1)
		case key.Matches(msg, keys.Select):
			it := items[min(d.cursor, len(items)-1)]
			if it.to.Name == route.Landing {
				d.app.cfg.Account.SignOut()
				d.app.persist("")
				return d, navigate(it.to, "Signed out.")
			}
			return d, navigate(it.to, "")
		}
	}
	return d, nil
}

func (d *dashboard) View() string {
	p := d.app.cfg.Account.Profile()
	var b strings.Builder
	b.WriteString(headingStyle.Render("Hi, "+p.Nickname) + "\n")
	switch p.Role {
	case models.RoleSeeker:
		b.WriteString(faintStyle.Render(fmt.Sprintf("%d chats so far", p.TotalSessions)))
	default:
		status := string(p.ListenerStatus)
		if p.IsAvailable {
			status += ", available"
		}
		b.WriteString(faintStyle.Render(fmt.Sprintf("listener (%s) • %d chats • rating %.1f from %d",
			status, p.TotalSessions, p.RatingAverage, p.RatingCount)))
	}
	b.WriteString("\n\n")
	for i, it := range d.items() {
		if i == d.cursor {
			b.WriteString(selectStyle.Render("> "+it.label) + "\n")
		} else {
			b.WriteString("  " + it.label + "\n")
		}
	}
	b.WriteString("\n" + help(keys.Up, keys.Down, keys.Select))
	return b.String()
}
