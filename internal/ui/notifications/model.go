package notifications

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workhub/internal/filter"
	"github.com/nhle/workhub/internal/keys"
	"github.com/nhle/workhub/internal/model"
	"github.com/nhle/workhub/internal/theme"
	"github.com/nhle/workhub/internal/ui"
)

// OpenMsg is sent when the user opens a notification.
type OpenMsg struct {
	Notification model.Notification
}

// MarkReadMsg asks the parent to mark one notification read.
type MarkReadMsg struct {
	ID string
}

// MarkAllReadMsg asks the parent to mark every notification read.
type MarkAllReadMsg struct{}

// RemoveMsg asks the parent to hide a notification.
type RemoveMsg struct {
	ID string
}

var readModes = []filter.ReadFilter{filter.ReadAll, filter.ReadUnread, filter.ReadRead}

// Model is the notification list view component.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	layout      ui.Layout
	all         []model.Notification
	opts        filter.Options
	eventIndex  int
	readIndex   int
	page        int
	pageSize    int
	searchMode  bool
	searchInput textinput.Model
	loading     bool
	errMsg      string
	width       int
	height      int
}

// New creates a new notification list model.
func New(k *keys.KeyMap, pageSize, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, max(height-3, 0))
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search notifications..."
	si.Prompt = "/ "
	si.Width = width - 4

	if pageSize <= 0 {
		pageSize = 20
	}

	return Model{
		list:        l,
		keys:        k,
		layout:      ui.NewLayout(width, height),
		opts:        filter.Options{Tab: filter.TabAll, Read: filter.ReadAll},
		page:        1,
		pageSize:    pageSize,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// SetNotifications replaces the displayed set.
func (m *Model) SetNotifications(ns []model.Notification, loading bool, errMsg string) {
	m.all = ns
	m.loading = loading
	m.errMsg = errMsg
	m.rebuild()
}

// SetTab switches to tab and resets paging.
func (m *Model) SetTab(t filter.Tab) {
	m.opts.Tab = t
	m.page = 1
	m.rebuild()
}

// Tab returns the active tab.
func (m Model) Tab() filter.Tab { return m.opts.Tab }

// Searching reports whether the search input has focus.
func (m Model) Searching() bool { return m.searchMode }

// Options returns the active filter options.
func (m Model) Options() filter.Options { return m.opts }

// ClearFilters resets search, event type and read filters. The tab is kept.
func (m *Model) ClearFilters() {
	m.opts.Search = ""
	m.opts.EventType = ""
	m.opts.Read = filter.ReadAll
	m.eventIndex = 0
	m.readIndex = 0
	m.searchInput.Reset()
	m.page = 1
	m.rebuild()
}

// SelectedNotification returns the highlighted notification.
func (m Model) SelectedNotification() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.opts.Search = strings.TrimSpace(m.searchInput.Value())
		m.page = 1
		m.rebuild()
		return m, nil

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.opts.Search = ""
		m.rebuild()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		n, ok := m.SelectedNotification()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return OpenMsg{Notification: n} }

	case key.Matches(msg, m.keys.MarkRead):
		n, ok := m.SelectedNotification()
		if !ok || n.Read {
			return m, nil
		}
		return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, func() tea.Msg { return MarkAllReadMsg{} }

	case key.Matches(msg, m.keys.Remove):
		n, ok := m.SelectedNotification()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return RemoveMsg{ID: n.ID} }

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.SetValue(m.opts.Search)
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.NextTab):
		m.SetTab(cycleTab(m.opts.Tab, 1))
		return m, nil

	case key.Matches(msg, m.keys.PrevTab):
		m.SetTab(cycleTab(m.opts.Tab, -1))
		return m, nil

	case key.Matches(msg, m.keys.ReadFilter):
		m.readIndex = (m.readIndex + 1) % len(readModes)
		m.opts.Read = readModes[m.readIndex]
		m.page = 1
		m.rebuild()
		return m, nil

	case key.Matches(msg, m.keys.EventType):
		m.eventIndex = (m.eventIndex + 1) % (len(model.EventTypes) + 1)
		m.opts.EventType = ""
		if m.eventIndex > 0 {
			m.opts.EventType = string(model.EventTypes[m.eventIndex-1])
		}
		m.page = 1
		m.rebuild()
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		m.page++
		m.rebuild()
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		m.page--
		m.rebuild()
		return m, nil
	}

	// Delegate to the list for cursor movement.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func cycleTab(current filter.Tab, step int) filter.Tab {
	for i, t := range filter.Tabs {
		if t == current {
			n := len(filter.Tabs)
			return filter.Tabs[(i+step+n)%n]
		}
	}
	return filter.TabAll
}

// rebuild reapplies the filter and page to the list items.
func (m *Model) rebuild() {
	matched := filter.Apply(m.all, m.opts)
	page := filter.Paginate(matched, m.page, m.pageSize)
	m.page = page.Number

	items := make([]list.Item, len(page.Items))
	for i, n := range page.Items {
		items[i] = Item{Notification: n}
	}
	m.list.SetItems(items)
}

// FilterSummary describes the active non-tab filters, or "" when none.
func (m Model) FilterSummary() string {
	var parts []string
	if m.opts.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", m.opts.Search))
	}
	if m.opts.EventType != "" {
		parts = append(parts, model.EventType(m.opts.EventType).Label())
	}
	if m.opts.Read != "" && m.opts.Read != filter.ReadAll {
		parts = append(parts, string(m.opts.Read))
	}
	return strings.Join(parts, ", ")
}

// View renders the tab bar, the list and the page footer.
func (m Model) View() string {
	counts := filter.CountByTab(m.all)
	tabs := make([]ui.Tab, len(filter.Tabs))
	for i, t := range filter.Tabs {
		tabs[i] = ui.Tab{Label: t.Label(), Count: counts[t], Active: t == m.opts.Tab}
	}
	tabBar := m.layout.RenderTabs(tabs)

	var body string
	switch {
	case m.searchMode:
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		body = lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	case len(m.list.Items()) == 0:
		body = m.renderEmptyState()
	default:
		body = m.list.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, tabBar, body, m.renderFooter())
}

func (m Model) renderFooter() string {
	matched := filter.Apply(m.all, m.opts)
	page := filter.Paginate(matched, m.page, m.pageSize)

	footer := fmt.Sprintf("page %d/%d · %d shown", page.Number, page.TotalPages, page.Total)
	if m.errMsg != "" {
		return theme.ErrorStyle.Render(m.errMsg) + "  " + theme.HelpStyle.Render(footer)
	}
	return theme.HelpStyle.Render(footer)
}

// renderEmptyState shows guidance text when nothing matches.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-3, 0)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return style.Render("Loading notifications...")
	case m.FilterSummary() != "" || m.opts.Tab != filter.TabAll:
		return style.Render("No matching notifications.\nTry another tab or clear the filters.")
	}
	return style.Render("You're all caught up.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.layout = ui.NewLayout(width, height)
	m.list.SetSize(width, max(height-3, 0))
	m.searchInput.Width = width - 4
}
