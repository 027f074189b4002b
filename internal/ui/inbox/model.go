package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	notif "github.com/nhle/fleetconsole/internal/inbox"
	"github.com/nhle/fleetconsole/internal/keys"
	"github.com/nhle/fleetconsole/internal/model"
	appsync "github.com/nhle/fleetconsole/internal/sync"
	"github.com/nhle/fleetconsole/internal/theme"
)

// mutationTimeout bounds a single mark-read request.
const mutationTimeout = 15 * time.Second

// MutationDoneMsg reports a finished mark-read or mark-all-read.
type MutationDoneMsg struct {
	StoreID string
	Op      string
	Err     error
}

// Config is what a mounted inbox needs.
type Config struct {
	Backend      notif.Backend
	PageSize     int
	PollInterval time.Duration
}

// Model is the inbox view. It owns one NotificationStore and its poller
// for as long as it is mounted.
type Model struct {
	cfg    Config
	keys   *keys.KeyMap
	store  *notif.Store
	poller *appsync.Poller

	list       list.Model
	snapshot   notif.Snapshot
	unreadOnly bool
	lastErr    error
	authMsg    string
	width      int
	height     int
}

// New creates an unmounted inbox view.
func New(cfg Config, k *keys.KeyMap, width, height int) Model {
	l := list.New(nil, itemDelegate{now: time.Now}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.KeyMap.Quit.SetEnabled(false)
	l.KeyMap.ForceQuit.SetEnabled(false)

	return Model{
		cfg:    cfg,
		keys:   k,
		list:   l,
		width:  width,
		height: height,
	}
}

// Mounted reports whether a store is live.
func (m Model) Mounted() bool { return m.store != nil }

// Mount creates a fresh store and starts polling it. The first refresh runs
// immediately.
func (m *Model) Mount() tea.Cmd {
	if m.store != nil {
		return nil
	}
	m.store = notif.New(m.cfg.Backend, m.cfg.PageSize)
	m.poller = appsync.New(m.store, m.cfg.PollInterval)
	m.lastErr = nil

	logrus.WithField("store_id", m.store.ID()).Debug("inbox mounted")
	return m.poller.Start()
}

// Unmount stops polling and closes the store. Requests still in flight run
// to completion and their results are discarded.
func (m *Model) Unmount() {
	if m.store == nil {
		return
	}
	m.poller.Stop()
	m.store.Close()
	logrus.WithField("store_id", m.store.ID()).Debug("inbox unmounted")

	m.store = nil
	m.poller = nil
}

// UnreadCount returns the badge value and whether the server reported one.
func (m Model) UnreadCount() (int, bool) {
	return m.snapshot.UnreadCount, m.snapshot.CountKnown
}

// AuthMessage is set when the last refresh was rejected for the token.
func (m Model) AuthMessage() string { return m.authMsg }

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case appsync.RefreshResultMsg:
		if m.poller == nil {
			return m, nil
		}
		m.lastErr = msg.Error
		if msg.AuthError != nil {
			m.authMsg = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authMsg = ""
		}
		m.syncList()
		return m, m.poller.WaitForNextResult()

	case MutationDoneMsg:
		if m.store == nil || msg.StoreID != m.store.ID() {
			return m, nil
		}
		m.lastErr = msg.Err
		m.syncList()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.store == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.MarkRead):
		it, ok := m.list.SelectedItem().(notificationItem)
		if !ok || it.n.IsRead {
			return m, nil
		}
		return m, m.mutate("mark_read", func(ctx context.Context, s *notif.Store) error {
			return s.MarkRead(ctx, it.n.ID)
		})

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.MarkAllRead()

	case key.Matches(msg, m.keys.ShowUnread):
		m.unreadOnly = !m.unreadOnly
		m.syncList()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.Refresh()
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Refresh asks the poller for an immediate refresh.
func (m Model) Refresh() tea.Cmd {
	if m.poller != nil {
		m.poller.RefreshNow()
	}
	return nil
}

// MarkAllRead returns a command marking the whole feed read.
func (m Model) MarkAllRead() tea.Cmd {
	if m.store == nil {
		return nil
	}
	return m.mutate("mark_all_read", func(ctx context.Context, s *notif.Store) error {
		return s.MarkAllRead(ctx)
	})
}

// mutate runs op against the current store off the update loop.
func (m Model) mutate(op string, fn func(context.Context, *notif.Store) error) tea.Cmd {
	s := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
		defer cancel()
		return MutationDoneMsg{StoreID: s.ID(), Op: op, Err: fn(ctx, s)}
	}
}

// syncList copies the store snapshot into the list, keeping the cursor.
func (m *Model) syncList() {
	if m.store == nil {
		return
	}
	m.snapshot = m.store.Snapshot()

	feed := m.snapshot.Feed
	if m.unreadOnly {
		feed = m.snapshot.Unread()
	}
	items := make([]list.Item, len(feed))
	for i, n := range feed {
		items[i] = notificationItem{n: n}
	}

	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
}

// Status returns a short header string describing freshness.
func (m Model) Status() string {
	synced := m.snapshot.LastSyncedAt
	switch {
	case m.authMsg != "":
		return "⚠ session expired"
	case m.lastErr != nil && !synced.IsZero():
		return "⚠ stale since " + synced.Format("15:04")
	case m.lastErr != nil:
		return "⚠ unreachable"
	case !synced.IsZero():
		return "synced " + synced.Format("15:04:05")
	default:
		return "syncing"
	}
}

// View renders the inbox view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		msg := "No notifications."
		if m.unreadOnly {
			msg = "No unread notifications."
		}
		if m.snapshot.LastSyncedAt.IsZero() {
			msg = "Loading notifications..."
		}
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render(msg)
	}

	summary := theme.DimmedStyle.Render(m.summary())
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), summary)
}

func (m Model) summary() string {
	count := "unread count unavailable"
	if m.snapshot.CountKnown {
		count = fmt.Sprintf("%d unread", m.snapshot.UnreadCount)
	}
	if m.unreadOnly {
		count += " (unread only)"
	}
	return count
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(notificationItem)
	return it.n, ok
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-2, 0))
}
