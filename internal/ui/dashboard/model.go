package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/fleetconsole/internal/api"
	ctrl "github.com/nhle/fleetconsole/internal/dashboard"
	"github.com/nhle/fleetconsole/internal/metrics"
	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/internal/theme"
	"github.com/nhle/fleetconsole/internal/ui"
)

// loadTimeout bounds one dashboard load, driver fetches included.
const loadTimeout = 45 * time.Second

// LoadedMsg carries the outcome of a dashboard load.
type LoadedMsg struct {
	View *ctrl.View
	Err  error
}

// Model is the dashboard view.
type Model struct {
	controller *ctrl.Controller
	principal  model.Principal
	view       *ctrl.View
	loading    bool
	lastErr    error
	spinner    spinner.Model
	width      int
	height     int
}

// New creates a dashboard view for principal.
func New(c *ctrl.Controller, p model.Principal, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		controller: c,
		principal:  p,
		spinner:    sp,
		width:      width,
		height:     height,
	}
}

// Init starts the first load.
func (m *Model) Init() tea.Cmd {
	return m.Load()
}

// Load returns a command that fetches and projects the dashboard.
func (m *Model) Load() tea.Cmd {
	m.loading = true
	c, p := m.controller, m.principal
	load := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		v, err := c.Load(ctx, p)
		return LoadedMsg{View: v, Err: err}
	}
	return tea.Batch(m.spinner.Tick, load)
}

// Update handles messages for the dashboard view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case LoadedMsg:
		m.loading = false
		m.lastErr = msg.Err
		// A failed load keeps the previous view on screen unless the
		// controller sent a replacement along with the error.
		if msg.View != nil {
			m.view = msg.View
		}
		return m, nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// Current returns the last successfully loaded view, or nil.
func (m Model) Current() *ctrl.View { return m.view }

// Err returns the error of the most recent load.
func (m Model) Err() error { return m.lastErr }

// Status returns a short header string describing freshness.
func (m Model) Status() string {
	switch {
	case m.loading:
		return m.spinner.View() + " loading"
	case m.lastErr != nil && api.IsAuthError(m.lastErr):
		return "⚠ session expired"
	case m.lastErr != nil && m.view != nil:
		return "⚠ stale since " + m.view.LoadedAt.Format("15:04")
	case m.lastErr != nil:
		return "⚠ unreachable"
	case m.view != nil:
		return "updated " + m.view.LoadedAt.Format("15:04")
	default:
		return ""
	}
}

// View renders the dashboard.
func (m Model) View() string {
	if m.view == nil {
		msg := "Loading dashboard..."
		if !m.loading && m.lastErr != nil {
			msg = "Dashboard unavailable. Press r to retry."
		}
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(msg)
	}

	p := m.view.Projection
	if p.Unassigned {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No vehicle assigned.\nAsk a fleet administrator to assign you a truck or machine.")
	}

	sections := []string{
		theme.DimmedStyle.Render(m.view.Profile.Kind.Label() + " view"),
		ui.Grid(m.width, renderStats(p.Stats)),
		theme.SectionTitleStyle.Render(fuelTitle(p)),
		renderFuelChart(p.FuelSeries, max(m.width-20, 10)),
		theme.SectionTitleStyle.Render("Recent activity"),
		renderActivities(p.Activities),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

// SetPrincipal swaps the operator; the next Load uses it.
func (m *Model) SetPrincipal(p model.Principal) {
	m.principal = p
	m.view = nil
}

func fuelTitle(p metrics.Projection) string {
	if p.Vehicle != "" {
		return "Fuel, last 7 fill days: " + p.Vehicle
	}
	return "Fuel consumption"
}

func renderStats(stats []metrics.Stat) []string {
	cards := make([]string, 0, len(stats))
	for _, s := range stats {
		change := theme.TrendStyle(string(s.Trend)).Render(trendArrow(s.Trend) + " " + s.Change)
		cards = append(cards, theme.StatCardStyle.Render(
			lipgloss.JoinVertical(lipgloss.Left,
				theme.DimmedStyle.Render(s.Label),
				lipgloss.NewStyle().Bold(true).Render(s.Value),
				change,
			),
		))
	}
	return cards
}

func trendArrow(t metrics.Trend) string {
	if t == metrics.TrendDown {
		return "▼"
	}
	return "▲"
}

// renderFuelChart draws one horizontal bar per bucket, scaled to the largest.
func renderFuelChart(s metrics.Series, width int) string {
	if len(s) == 0 {
		return theme.DimmedStyle.Render("No fuel data.")
	}

	peak := s.Max()
	lines := make([]string, 0, len(s))
	for _, b := range s {
		n := 0
		if peak > 0 {
			n = int(b.Total / peak * float64(width))
		}
		if n == 0 && b.Total > 0 {
			n = 1
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			b.Label,
			theme.BarStyle.Render(strings.Repeat("█", n)),
			model.FormatNumber(b.Total),
		))
	}
	return strings.Join(lines, "\n")
}

func renderActivities(acts []model.Activity) string {
	if len(acts) == 0 {
		return theme.DimmedStyle.Render("No recent activity.")
	}

	lines := make([]string, 0, len(acts))
	for _, a := range acts {
		when := ""
		if t, ok := model.ParseTimestamp(a.CreatedAt); ok {
			when = theme.DimmedStyle.Render(" " + t.Format("02/01 15:04"))
		}
		lines = append(lines, "• "+a.Description+when)
	}
	return strings.Join(lines, "\n")
}
