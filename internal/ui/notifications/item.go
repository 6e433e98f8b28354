package notifications

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/workhub/internal/model"
	"github.com/nhle/workhub/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line for the list.
func (i Item) Description() string {
	n := i.Notification
	parts := []string{n.EventType.Label()}
	if n.ActorName != "" {
		parts = append(parts, n.ActorName)
	}
	if n.TimeAgo != "" {
		parts = append(parts, n.TimeAgo)
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering notifications.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	isSelected := index == m.Index()

	dot := " "
	if !n.Read {
		dot = theme.UnreadDotStyle.Render("●")
	}

	badge := theme.EventStyle(string(n.EventType), string(n.Category)).
		Render(n.EventType.Label())

	meta := n.TimeAgo
	if n.ActorName != "" {
		meta = n.ActorName + " · " + meta
	}

	line := fmt.Sprintf("%s %s %s  %s", dot, badge, n.Title, theme.DimmedStyle.Render(meta))

	if n.Read && !isSelected {
		line = theme.DimmedStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}
