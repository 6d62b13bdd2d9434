package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	headingStyle = lipgloss.NewStyle().Bold(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("79"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	selectStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	selfStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("111"))
	peerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("180"))
	timerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("79"))
	lowTimeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	offerStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(0, 1)
)

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Back    key.Binding
	Switch  key.Binding
	End     key.Binding
	Extend  key.Binding
	Accept  key.Binding
	Decline key.Binding
	Toggle  key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Switch:  key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
	End:     key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "end chat")),
	Extend:  key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "more time")),
	Accept:  key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "accept")),
	Decline: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "decline")),
	Toggle:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle availability")),
}

func help(bindings ...key.Binding) string {
	var out string
	for i, b := range bindings {
		if i > 0 {
			out += " • "
		}
		h := b.Help()
		out += h.Key + " " + h.Desc
	}
	return helpStyle.Render(out)
}
