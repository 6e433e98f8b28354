// Package filter narrows, orders and pages notifications for display.
// Every function is pure: inputs are never modified.
package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/nhle/workhub/internal/model"
)

// Tab is a coarse notification tab.
type Tab string

const (
	TabAll      Tab = "all"
	TabUnread   Tab = "unread"
	TabTasks    Tab = "tasks"
	TabProjects Tab = "projects"
	TabTeam     Tab = "team"
)

// Tabs lists every tab in display order.
var Tabs = []Tab{TabAll, TabUnread, TabTasks, TabProjects, TabTeam}

var tabLabels = map[Tab]string{
	TabAll:      "All",
	TabUnread:   "Unread",
	TabTasks:    "Tasks",
	TabProjects: "Projects",
	TabTeam:     "Team",
}

// Label returns the display name of the tab.
func (t Tab) Label() string {
	if l, ok := tabLabels[t]; ok {
		return l
	}
	return tabLabels[TabAll]
}

// ParseTab maps a name (case-insensitive) to a Tab; unknown names map to
// TabAll.
func ParseTab(raw string) Tab {
	t := Tab(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := tabLabels[t]; ok {
		return t
	}
	return TabAll
}

// Match reports whether n belongs on the tab.
func (t Tab) Match(n model.Notification) bool {
	switch t {
	case TabUnread:
		return !n.Read
	case TabTasks:
		return n.Category == model.CategoryTask
	case TabProjects:
		return n.Category == model.CategoryProject
	case TabTeam:
		return n.Category == model.CategoryTeam
	}
	return true
}

// ReadFilter narrows by read state.
type ReadFilter string

const (
	ReadAll    ReadFilter = "all"
	ReadUnread ReadFilter = "unread"
	ReadRead   ReadFilter = "read"
)

// EventAll disables the event type filter.
const EventAll = "all"

// Options select what Apply keeps. Zero values keep everything.
type Options struct {
	Tab       Tab
	EventType string
	Read      ReadFilter
	Search    string
}

var folder = cases.Fold()

// Apply returns the notifications matching opts, newest first. The tab,
// event type, read state and search term all have to match.
func Apply(ns []model.Notification, opts Options) []model.Notification {
	tab := opts.Tab
	if tab == "" {
		tab = TabAll
	}
	event := strings.TrimSpace(opts.EventType)
	term := folder.String(strings.TrimSpace(opts.Search))

	out := make([]model.Notification, 0, len(ns))
	for _, n := range ns {
		if !tab.Match(n) {
			continue
		}
		if event != "" && !strings.EqualFold(event, EventAll) && string(n.EventType) != event {
			continue
		}
		switch opts.Read {
		case ReadUnread:
			if n.Read {
				continue
			}
		case ReadRead:
			if !n.Read {
				continue
			}
		}
		if term != "" && !matchesSearch(n, term) {
			continue
		}
		out = append(out, n)
	}

	model.SortNewestFirst(out)
	return out
}

func matchesSearch(n model.Notification, folded string) bool {
	for _, field := range []string{n.Title, n.Description, n.ActorName, n.UserID, n.ID} {
		if field != "" && strings.Contains(folder.String(field), folded) {
			return true
		}
	}
	return false
}

// CountByTab returns how many notifications each tab would show.
func CountByTab(ns []model.Notification) map[Tab]int {
	counts := make(map[Tab]int, len(Tabs))
	for _, t := range Tabs {
		counts[t] = 0
	}
	for _, n := range ns {
		for _, t := range Tabs {
			if t.Match(n) {
				counts[t]++
			}
		}
	}
	return counts
}
