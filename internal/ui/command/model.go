package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/fleetconsole/internal/theme"
)

// Known command names.
const (
	Dashboard = "dashboard"
	Inbox     = "inbox"
	Refresh   = "refresh"
	ReadAll   = "read-all"
	Roles     = "roles"
	Connect   = "connect"
	Quit      = "quit"
)

// aliases maps shorthand to a command name.
var aliases = map[string]string{
	"d":       Dashboard,
	"dash":    Dashboard,
	"i":       Inbox,
	"n":       Inbox,
	"sync":    Refresh,
	"r":       Refresh,
	"readall": ReadAll,
	"as":      Roles,
	"role":    Roles,
	"config":  Connect,
	"login":   Connect,
	"q":       Quit,
	"exit":    Quit,
}

// CommandMsg is emitted when the operator executes a known command.
type CommandMsg struct {
	Name string
	Args []string
}

// UnknownCommandMsg is emitted for input that matches no command.
type UnknownCommandMsg struct {
	Input string
}

// Parse resolves one line of palette input. Arguments after the name are
// split on whitespace and commas.
func Parse(line string) (CommandMsg, bool) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	if len(fields) == 0 {
		return CommandMsg{}, false
	}

	name := strings.ToLower(fields[0])
	if full, ok := aliases[name]; ok {
		name = full
	}
	switch name {
	case Dashboard, Inbox, Refresh, ReadAll, Roles, Connect, Quit:
		return CommandMsg{Name: name, Args: fields[1:]}, true
	}
	return CommandMsg{}, false
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "dashboard, inbox, refresh, read-all, roles <list>, connect, quit"
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions([]string{Dashboard, Inbox, Refresh, ReadAll, Roles, Connect, Quit})
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			cmd, ok := Parse(line)
			if !ok {
				return m, func() tea.Msg { return UnknownCommandMsg{Input: line} }
			}
			return m, func() tea.Msg { return cmd }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Command Palette"),
		m.input.View(),
	)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
