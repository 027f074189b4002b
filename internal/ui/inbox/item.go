package inbox

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/fleetconsole/internal/model"
	"github.com/nhle/fleetconsole/internal/theme"
)

// typeLabels are the badges shown per notification type.
var typeLabels = map[model.NotificationType]string{
	model.NotificationIncident:   "INCIDENT",
	model.NotificationFuelReport: "FUEL",
	model.NotificationOther:      "INFO",
}

// TypeLabel returns the badge text for t.
func TypeLabel(t model.NotificationType) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return typeLabels[model.NotificationOther]
}

// notificationItem wraps a model.Notification for a bubbles/list.
type notificationItem struct {
	n model.Notification
}

func (i notificationItem) FilterValue() string { return i.n.Title }

// itemDelegate renders one notification per line.
type itemDelegate struct {
	now func() time.Time
}

func (d itemDelegate) Height() int { return 1 }

func (d itemDelegate) Spacing() int { return 0 }

func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(notificationItem)
	if !ok {
		return
	}
	n := it.n

	marker := "●"
	if n.IsRead {
		marker = " "
	}

	title := n.Title
	if n.Message != "" {
		title += theme.DimmedStyle.Render(" " + n.Message)
	}

	line := fmt.Sprintf("%s %s %s  %s",
		marker,
		theme.NotificationTypeStyle(string(n.Type)).Render(TypeLabel(n.Type)),
		title,
		theme.DimmedStyle.Render(age(d.now(), n.CreatedAt)),
	)

	if n.IsRead {
		line = theme.DimmedStyle.Render(line)
	}
	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}
	fmt.Fprint(w, line)
}

// age returns a short relative time such as "5m ago".
func age(now, t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
