package app

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/fleetconsole/internal/api"
	"github.com/nhle/fleetconsole/internal/dashboard"
	"github.com/nhle/fleetconsole/internal/keys"
	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/internal/role"
	appsync "github.com/nhle/fleetconsole/internal/sync"
	"github.com/nhle/fleetconsole/internal/ui"
	"github.com/nhle/fleetconsole/internal/ui/command"
	dashview "github.com/nhle/fleetconsole/internal/ui/dashboard"
	helpview "github.com/nhle/fleetconsole/internal/ui/help"
	inboxview "github.com/nhle/fleetconsole/internal/ui/inbox"
	"github.com/nhle/fleetconsole/internal/ui/setup"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewDashboard ViewState = iota
	ViewInbox
	ViewHelp
	ViewCommand
	ViewSetup
)

// Model is the root Bubble Tea model that routes between views and owns the
// inbox lifecycle.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	cfg        *model.AppConfig
	configPath string
	principal  model.Principal
	client     *api.Client

	dashboard   dashview.Model
	inbox       inboxview.Model
	helpView    helpview.Model
	commandView command.Model
	setupView   setup.Model

	ready       bool
	flash       string
	authMessage string
}

// New creates the root model. An empty token starts the console on the
// connection setup screen.
func New(cfg *model.AppConfig, configPath, token string) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		keys:        k,
		cfg:         cfg,
		configPath:  configPath,
		principal:   cfg.Operator(),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		setupView:   setup.New(cfg, configPath, 80, 24),
	}
	m.connect(token)
	if token == "" {
		m.currentView = ViewSetup
	}
	return m
}

// connect builds the API client and the views that depend on it.
func (m *Model) connect(token string) {
	m.client = NewClient(m.cfg, token)
	m.dashboard = dashview.New(dashboard.New(m.client), m.principal, 80, 24)
	m.inbox = inboxview.New(inboxview.Config{
		Backend:      m.client,
		PageSize:     m.cfg.Inbox.PageSize,
		PollInterval: m.cfg.PollInterval(),
	}, m.keys, 80, 24)
	m.helpView.SetProfile(role.Resolve(m.principal.Roles).Kind.Label())

	if m.ready {
		m.resize()
	}
}

// NewClient builds the API client from cfg.
func NewClient(cfg *model.AppConfig, token string) *api.Client {
	return api.NewClient(cfg.API.BaseURL, token,
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithMaxRetries(cfg.API.MaxRetries),
	)
}

// Init starts on the dashboard, or on setup when no token is known.
func (m Model) Init() tea.Cmd {
	if m.currentView == ViewSetup {
		return m.setupView.Init()
	}
	return m.dashboard.Init()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case dashview.LoadedMsg:
		if msg.Err != nil && api.IsAuthError(msg.Err) {
			m.authMessage = "Session expired. Press 'c' to enter a new token."
		} else if msg.Err == nil {
			m.authMessage = ""
		}
		var cmd tea.Cmd
		m.dashboard, cmd = m.dashboard.Update(msg)
		return m, cmd

	case setup.DoneMsg:
		m.cfg = msg.Config
		m.principal = msg.Config.Operator()
		m.inbox.Unmount()
		m.connect(msg.Token)
		m.authMessage = ""
		m.flash = "Connected to " + m.cfg.API.BaseURL
		m.currentView = ViewDashboard
		return m, m.dashboard.Load()

	case setup.CancelMsg:
		if m.currentView != ViewSetup {
			return m, nil
		}
		m.currentView = m.previousView
		if m.currentView == ViewSetup {
			m.currentView = ViewDashboard
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case command.UnknownCommandMsg:
		m.currentView = m.previousView
		m.flash = fmt.Sprintf("unknown command %q", msg.Input)
		return m, nil

	case inboxview.MutationDoneMsg:
		if msg.Err != nil {
			m.flash = "Could not update notifications; try again."
		}
		var cmd tea.Cmd
		m.inbox, cmd = m.inbox.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.currentView == ViewSetup || m.currentView == ViewCommand {
			if msg.String() == "ctrl+c" {
				return m.quit()
			}
			if msg.String() == "esc" && m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			return m.updateActiveView(msg)
		}
		m.flash = ""

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m.quit()

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
			}
			return m, nil

		case msg.String() == ":":
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case key.Matches(msg, m.keys.Setup):
			return m, m.openSetup()

		case key.Matches(msg, m.keys.SwitchView):
			if m.currentView == ViewInbox {
				return m, m.showDashboard()
			}
			return m, m.showInbox()

		case key.Matches(msg, m.keys.Dashboard):
			return m, m.showDashboard()

		case key.Matches(msg, m.keys.Inbox):
			return m, m.showInbox()

		case key.Matches(msg, m.keys.Refresh) && m.currentView == ViewDashboard:
			return m, m.dashboard.Load()
		}
	}

	return m.routeMessage(msg)
}

// routeMessage sends poll results to the inbox whichever view is active, so
// the waiter chain is never broken, and everything else to the active view.
func (m Model) routeMessage(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(appsync.RefreshResultMsg); ok {
		var cmd tea.Cmd
		m.inbox, cmd = m.inbox.Update(msg)
		return m, cmd
	}
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewDashboard:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewSetup:
		m.setupView, cmd = m.setupView.Update(msg)
	}

	return m, cmd
}

// showInbox mounts a fresh inbox; polling runs only while it is visible.
func (m *Model) showInbox() tea.Cmd {
	m.currentView = ViewInbox
	return m.inbox.Mount()
}

// showDashboard tears the inbox down and reloads the dashboard.
func (m *Model) showDashboard() tea.Cmd {
	wasInbox := m.inbox.Mounted()
	m.inbox.Unmount()
	m.currentView = ViewDashboard
	if wasInbox || m.dashboard.Current() == nil {
		return m.dashboard.Load()
	}
	return nil
}

func (m *Model) openSetup() tea.Cmd {
	m.inbox.Unmount()
	if m.currentView != ViewSetup {
		m.previousView = m.currentView
	}
	if m.previousView == ViewInbox {
		m.previousView = ViewDashboard
	}
	m.currentView = ViewSetup
	m.setupView = setup.New(m.cfg, m.configPath, m.layout.ContentWidth(), m.layout.ContentHeight())
	return m.setupView.Init()
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.inbox.Unmount()
	return m, tea.Quit
}

func (m *Model) resize() {
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.dashboard.SetSize(w, h)
	m.inbox.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
	m.setupView.SetSize(w, h)
}

// executeCommand handles a command from the command palette.
func (m *Model) executeCommand(c command.CommandMsg) tea.Cmd {
	switch c.Name {
	case command.Dashboard:
		return m.showDashboard()
	case command.Inbox:
		return m.showInbox()
	case command.Refresh:
		if m.currentView == ViewInbox {
			return m.inbox.Refresh()
		}
		return m.dashboard.Load()
	case command.ReadAll:
		if m.currentView != ViewInbox {
			m.flash = "read-all works in the inbox"
			return nil
		}
		return m.inbox.MarkAllRead()
	case command.Roles:
		if len(c.Args) == 0 {
			m.flash = "usage: roles <role>[,<role>...]"
			return nil
		}
		m.principal.Roles = c.Args
		m.dashboard.SetPrincipal(m.principal)
		profile := role.Resolve(c.Args)
		m.helpView.SetProfile(profile.Kind.Label())
		m.flash = "Viewing as " + profile.Kind.Label()
		logrus.WithFields(logrus.Fields{"roles": c.Args, "profile": profile.Kind}).Info("principal roles changed")
		if m.currentView == ViewDashboard {
			return m.dashboard.Load()
		}
		return nil
	case command.Connect:
		return m.openSetup()
	case command.Quit:
		m.inbox.Unmount()
		return tea.Quit
	}
	return nil
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader("Fleet Console", m.tabs(), m.syncStatus())
	return m.layout.RenderWithFrame(header, m.renderContent(), m.layout.RenderStatusBar(m.keyHints()))
}

func (m Model) tabs() []ui.Tab {
	badge := ""
	if n, known := m.inbox.UnreadCount(); known && n > 0 {
		badge = strconv.Itoa(n)
	}
	active := m.currentView
	if active == ViewHelp || active == ViewCommand {
		active = m.previousView
	}
	return []ui.Tab{
		{Title: "1 Dashboard", Active: active == ViewDashboard},
		{Title: "2 Inbox", Badge: badge, Active: active == ViewInbox},
	}
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewDashboard:
		return m.dashboard.View()
	case ViewInbox:
		return m.inbox.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewSetup:
		return m.setupView.View()
	default:
		return ""
	}
}

// syncStatus reports freshness of the visible data; staleness is the only
// failure state the console shows.
func (m Model) syncStatus() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.Status()
	case ViewSetup:
		return ""
	default:
		return m.dashboard.Status()
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if msg := m.authHint(); msg != "" {
		return msg
	}
	if m.flash != "" {
		return m.flash
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewSetup:
		return "enter next | esc cancel"
	case ViewInbox:
		return "enter read | A read all | U unread only | r refresh | tab dashboard | q quit"
	default:
		return "tab inbox | r refresh | : command | c connection | ? help | q quit"
	}
}

func (m Model) authHint() string {
	if m.currentView == ViewSetup {
		return ""
	}
	if m.authMessage != "" {
		return m.authMessage
	}
	if m.currentView == ViewInbox {
		return m.inbox.AuthMessage()
	}
	return ""
}
