package setup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/fleetconsole/internal/api"
	"github.com/nhle/fleetconsole/internal/credential"
	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/internal/theme"
)

// validateTimeout bounds the connection test.
const validateTimeout = 15 * time.Second

// Mode is the current screen of the setup view.
type Mode int

const (
	ModeForm Mode = iota
	ModeValidating
	ModeFailed
)

// DoneMsg is sent once the connection was verified and saved.
type DoneMsg struct {
	Config *model.AppConfig
	Token  string
}

// CancelMsg is sent when the operator backs out of the form.
type CancelMsg struct{}

type validatedMsg struct {
	err error
}

// Model is the connection setup view: backend URL, token and operator.
type Model struct {
	mode       Mode
	cfg        model.AppConfig
	configPath string
	form       *huh.Form
	spinner    spinner.Model
	err        error

	// Form field values (huh binds to these)
	baseURL string
	token   string
	name    string
	roles   string

	width, height int
}

// New creates the setup view prefilled from cfg.
func New(cfg *model.AppConfig, configPath string, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		cfg:        *cfg,
		configPath: configPath,
		spinner:    sp,
		baseURL:    cfg.API.BaseURL,
		name:       cfg.Principal.Name,
		roles:      strings.Join(cfg.Principal.Roles, ", "),
		width:      width,
		height:     height,
	}
	return m
}

// Init builds a fresh form.
func (m *Model) Init() tea.Cmd {
	m.mode = ModeForm
	m.err = nil
	m.token = ""
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("base_url").
				Title("Backend URL").
				Description("Root of the fleet REST API").
				Placeholder("https://fleet.example.com/api").
				Value(&m.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Key("token").
				Title("API token").
				Description("Bearer token issued by the backend").
				EchoMode(huh.EchoModePassword).
				Value(&m.token).
				Validate(validateRequired("Token")),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Your name").
				Value(&m.name),
			huh.NewInput().
				Key("roles").
				Title("Roles").
				Description("Comma-separated, e.g. Admin or Chauffeur").
				Value(&m.roles),
		),
	).WithWidth(m.formWidth())
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case validatedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.mode = ModeFailed
			return m, nil
		}
		cfg := m.cfg
		return m, func() tea.Msg { return DoneMsg{Config: &cfg, Token: strings.TrimSpace(m.token)} }

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			return m, nil
		case ModeFailed:
			switch msg.String() {
			case "enter":
				return m, m.Init()
			case "esc":
				return m, func() tea.Msg { return CancelMsg{} }
			}
			return m, nil
		}
	}

	if m.form == nil || m.mode != ModeForm {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.applyForm()
		m.mode = ModeValidating
		return m, tea.Batch(m.spinner.Tick, m.validateAndSave())
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// applyForm copies the submitted values into the pending config. Values are
// read back from the form because the bound pointers may belong to an older
// copy of the model.
func (m *Model) applyForm() {
	m.baseURL = m.form.GetString("base_url")
	m.token = m.form.GetString("token")
	m.name = m.form.GetString("name")
	m.roles = m.form.GetString("roles")

	m.cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(m.baseURL), "/")
	m.cfg.Principal.Name = strings.TrimSpace(m.name)
	m.cfg.Principal.Roles = splitRoles(m.roles)
}

// validateAndSave tests the token against the backend, then persists the
// token to the keyring and the rest to the config file.
func (m Model) validateAndSave() tea.Cmd {
	cfg := m.cfg
	token := strings.TrimSpace(m.token)
	path := m.configPath
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()

		client := api.NewClient(cfg.API.BaseURL, token, api.WithMaxRetries(0))
		if _, err := client.UnreadCount(ctx); err != nil {
			if api.IsAuthError(err) {
				return validatedMsg{err: fmt.Errorf("the backend rejected this token")}
			}
			return validatedMsg{err: fmt.Errorf("connecting to %s: %w", cfg.API.BaseURL, err)}
		}

		if err := credential.Set(credential.TokenKey, token); err != nil {
			return validatedMsg{err: err}
		}
		if err := model.SaveConfig(path, &cfg); err != nil {
			return validatedMsg{err: err}
		}
		return validatedMsg{}
	}
}

// View renders the setup view.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	title := titleStyle.Render("Connect to the fleet backend")

	var body string
	switch m.mode {
	case ModeValidating:
		body = m.spinner.View() + " Checking connection..."
	case ModeFailed:
		body = lipgloss.JoinVertical(lipgloss.Left,
			theme.WarningStyle.Render(m.err.Error()),
			"",
			theme.HelpStyle.Render("enter try again | esc cancel"),
		)
	default:
		if m.form != nil {
			body = m.form.View()
		}
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return max(min(m.width-8, 72), 30)
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}
