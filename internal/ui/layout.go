package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/fleetconsole/internal/theme"
)

// Layout tracks the terminal dimensions shared by every view.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with one-line header and status bars.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left between the header and the status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// Tab is one entry of the header view switcher.
type Tab struct {
	Title  string
	Badge  string
	Active bool
}

// RenderHeader renders the title, the view tabs and a right-aligned status.
func (l Layout) RenderHeader(title string, tabs []Tab, status string) string {
	parts := []string{theme.HeaderStyle.Render(title)}
	for _, t := range tabs {
		style := theme.TabStyle
		if t.Active {
			style = theme.ActiveTabStyle
		}
		parts = append(parts, style.Render(t.Title))
		if t.Badge != "" {
			parts = append(parts, theme.BadgeStyle.Render(t.Badge))
		}
	}
	left := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	right := theme.HeaderStyle.Render(status)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		fill(theme.HeaderStyle, l.Width-lipgloss.Width(left)-lipgloss.Width(right)),
		right,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		fill(theme.StatusBarStyle, l.Width-lipgloss.Width(rendered)),
	)
}

// RenderWithFrame stacks the header, a content area padded to the content
// height, and the status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	body := lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}

// Grid lays cells out left to right, wrapping to a new row when the next
// cell would overflow width.
func Grid(width int, cells []string) string {
	var rows []string
	var row []string
	rowWidth := 0
	for _, c := range cells {
		w := lipgloss.Width(c)
		if len(row) > 0 && rowWidth+w > width {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row, rowWidth = nil, 0
		}
		row = append(row, c)
		rowWidth += w
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// fill renders n columns of the style's background.
func fill(style lipgloss.Style, n int) string {
	if n <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Background(style.GetBackground()).
		Render(strings.Repeat(" ", n))
}
