// Package tui is the OneTalk terminal client. The root App owns the current
// screen and swaps it whenever a screen asks to navigate. Each screen wraps
// one of the client controllers and turns its results into messages.
package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"onetalk/internal/account"
	"onetalk/internal/chat"
	"onetalk/internal/client"
	"onetalk/internal/clock"
	"onetalk/internal/models"
	"onetalk/internal/queue"
	"onetalk/internal/route"
	"onetalk/internal/waiting"
)

// API is everything the screens call on the backend. *client.Client
// implements it.
type API interface {
	chat.Backend
	waiting.Backend
	queue.Backend

	SignUp(ctx context.Context, nickname, password string, listener bool) (client.AuthResult, error)
	SignIn(ctx context.Context, nickname, password string) (client.AuthResult, error)
	Me(ctx context.Context) (models.Profile, error)
	Topics(ctx context.Context) ([]models.Topic, error)
	CreateSession(ctx context.Context, topicID *string, description string) (models.ChatSession, error)
	History(ctx context.Context) ([]models.HistoryEntry, error)
	RateSession(ctx context.Context, id string, score int, comment string) (models.Rating, error)
}

type Config struct {
	API     API
	Account *account.Account
	Clock   clock.Clock
	Log     *logrus.Entry
	// Payments captures extension payments. Nil uses chat.SimulatedGateway.
	Payments chat.PaymentGateway
	// Persist is called with the token after sign-in and with "" after
	// sign-out. It may be nil.
	Persist func(token string) error
	// Start is the first route. Zero means Landing, or Dashboard when the
	// account is already signed in.
	Start route.Route
}

type App struct {
	cfg    Config
	ctx    context.Context
	screen screen
	route  route.Route
	notice notice
	width  int
	height int
}

// screen is one route's model.
type screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (screen, tea.Cmd)
	View() string
}

// closer is implemented by screens that hold live resources.
type closer interface{ close() }

type navigateMsg struct {
	to     route.Route
	notice notice
}

type noticeMsg notice

type notice struct {
	text  string
	error bool
}

func navigate(to route.Route, text string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{to: to, notice: notice{text: text}} }
}

func navigateErr(to route.Route, text string) tea.Cmd {
	return func() tea.Msg { return navigateMsg{to: to, notice: notice{text: text, error: true}} }
}

func info(text string) tea.Cmd {
	return func() tea.Msg { return noticeMsg{text: text} }
}

func failure(text string) tea.Cmd {
	return func() tea.Msg { return noticeMsg{text: text, error: true} }
}

func New(ctx context.Context, cfg Config) *App {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Payments == nil {
		cfg.Payments = chat.SimulatedGateway{}
	}
	a := &App{cfg: cfg, ctx: ctx}
	start := cfg.Start
	if start.Name == "" {
		start = route.To(route.Landing)
		if cfg.Account.Authenticated() {
			start = route.To(route.Dashboard)
		}
	}
	a.route, a.screen = a.screenFor(start)
	return a
}

func (a *App) Init() tea.Cmd { return a.screen.Init() }

// Route is the route of the screen currently shown.
func (a *App) Route() route.Route { return a.route }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			a.closeScreen()
			return a, tea.Quit
		}
		a.notice = notice{}
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case navigateMsg:
		a.closeScreen()
		if msg.notice.text != "" {
			a.notice = msg.notice
		}
		a.route, a.screen = a.screenFor(msg.to)
		a.cfg.Log.WithField("route", a.route.Path()).Debug("navigate")
		cmds := []tea.Cmd{a.screen.Init()}
		if a.width > 0 {
			w, h := a.width, a.height
			cmds = append(cmds, func() tea.Msg { return tea.WindowSizeMsg{Width: w, Height: h} })
		}
		return a, tea.Batch(cmds...)
	case noticeMsg:
		a.notice = notice(msg)
		return a, nil
	}
	var cmd tea.Cmd
	a.screen, cmd = a.screen.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("OneTalk"))
	if p := a.cfg.Account.Profile(); a.cfg.Account.Authenticated() {
		b.WriteString(faintStyle.Render("  signed in as " + p.Nickname))
	}
	b.WriteString("\n\n")
	b.WriteString(a.screen.View())
	if a.notice.text != "" {
		b.WriteString("\n\n")
		if a.notice.error {
			b.WriteString(errorStyle.Render(a.notice.text))
		} else {
			b.WriteString(noticeStyle.Render(a.notice.text))
		}
	}
	b.WriteString("\n")
	return b.String()
}

func (a *App) closeScreen() {
	if c, ok := a.screen.(closer); ok {
		c.close()
	}
}

// screenFor builds the screen for r. Screens behind sign-in redirect to
// Auth when the account is signed out.
func (a *App) screenFor(r route.Route) (route.Route, screen) {
	public := r.Name == route.Landing || r.Name == route.Auth || r.Name == route.NotFound
	if !public && !a.cfg.Account.Authenticated() {
		r = route.To(route.Auth)
	}
	switch r.Name {
	case route.Landing:
		return r, newLanding()
	case route.Auth:
		return r, newAuth(a)
	case route.Dashboard:
		return r, newDashboard(a)
	case route.ChatStart:
		return r, newStart(a)
	case route.Waiting:
		return r, newWaitingScreen(a, r.SessionID)
	case route.Session:
		return r, newSessionScreen(a, r.SessionID)
	case route.Queue:
		return r, newQueueScreen(a)
	case route.History:
		return r, newHistory(a)
	case route.Rating:
		return r, newRating(a, r.SessionID)
	}
	return route.To(route.NotFound), notFound{}
}

func (a *App) persist(token string) {
	if a.cfg.Persist == nil {
		return
	}
	if err := a.cfg.Persist(token); err != nil {
		a.cfg.Log.WithError(err).Warn("save account")
	}
}

type notFound struct{}

func (notFound) Init() tea.Cmd { return nil }

func (n notFound) Update(msg tea.Msg) (screen, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		return n, navigate(route.To(route.Landing), "")
	}
	return n, nil
}

func (notFound) View() string {
	return headingStyle.Render("Page not found") + "\n\n" + helpStyle.Render("press any key to go home")
}
