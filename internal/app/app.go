package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/workhub/internal/filter"
	"github.com/nhle/workhub/internal/keys"
	"github.com/nhle/workhub/internal/sync"
	"github.com/nhle/workhub/internal/ui"
	"github.com/nhle/workhub/internal/ui/command"
	configview "github.com/nhle/workhub/internal/ui/config"
	"github.com/nhle/workhub/internal/ui/detail"
	helpview "github.com/nhle/workhub/internal/ui/help"
	"github.com/nhle/workhub/internal/ui/notifications"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewSettings
	ViewHelp
	ViewCommand
)

// sessionStartedMsg reports the outcome of Session.Start.
type sessionStartedMsg struct {
	err error
}

// Model is the root Bubble Tea model that routes between views and
// forwards user intents to the notification center.
type Model struct {
	ctx          context.Context
	session      *Session
	feed         *sync.Feed
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	list         notifications.Model
	detail       detail.Model
	helpView     helpview.Model
	commandView  command.Model
	settingsView configview.Model
	view         sync.View
	notice       string
	ready        bool
}

// New creates the root model for s. The session is started from Init.
func New(ctx context.Context, s *Session) Model {
	k := keys.DefaultKeyMap()
	settings := s.Settings.Value()

	list := notifications.New(k, s.Config.Display.PageSize, 80, 24)
	list.SetTab(filter.ParseTab(settings.DefaultTab))

	return Model{
		ctx:          ctx,
		session:      s,
		feed:         sync.NewFeed(s.Center),
		currentView:  ViewList,
		keys:         k,
		list:         list,
		detail:       detail.New(k, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.New(80, 24),
		settingsView: configview.New(settings, 80, 24),
	}
}

// Init starts the session and begins listening for center updates.
func (m Model) Init() tea.Cmd {
	s, ctx := m.session, m.ctx
	return tea.Batch(
		m.feed.WaitForNext(),
		func() tea.Msg { return sessionStartedMsg{err: s.Start(ctx)} },
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.list.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sessionStartedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else if !m.session.AuthFlag.Value() {
			m.notice = "signed out: run `workhub login` to connect"
		}
		return m, nil

	case sync.ViewMsg:
		m.view = msg.View
		m.list.SetNotifications(msg.View.Notifications, msg.View.Loading, msg.View.Error)
		return m, m.feed.WaitForNext()

	case sync.NoticeMsg:
		m.notice = msg.Notice.Error()
		return m, m.feed.WaitForNext()

	case notifications.OpenMsg:
		n := msg.Notification
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetNotification(n, m.session.Center.ResolveLink(n))
		if !n.Read {
			return m, m.markRead(n.ID)
		}
		return m, nil

	case notifications.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case notifications.MarkAllReadMsg:
		return m, m.markAllRead()

	case notifications.RemoveMsg:
		m.session.Center.Remove(msg.ID)
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(msg)

	case configview.SettingsSavedMsg:
		m.session.Settings.Set(msg.Settings)
		m.list.SetTab(filter.ParseTab(msg.Settings.DefaultTab))
		m.currentView = ViewList
		return m, nil

	case configview.ConfigDoneMsg:
		m.currentView = ViewList
		return m, nil

	case mutationDoneMsg:
		if msg.err == nil {
			m.notice = ""
		}
		return m, nil

	case tea.KeyMsg:
		// The search input owns every key but ctrl+c.
		if m.currentView == ViewList && m.list.Searching() && msg.String() != "ctrl+c" {
			return m.updateActiveView(msg)
		}

		// Global keys that work regardless of current view
		switch msg.String() {
		case "ctrl+c":
			m.feed.Stop()
			return m, tea.Quit

		case "q":
			if m.currentView == ViewList {
				m.feed.Stop()
				return m, tea.Quit
			}

		case "?":
			if m.currentView == ViewSettings || m.currentView == ViewCommand {
				break
			}
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil

		case ":":
			if m.currentView == ViewSettings {
				break
			}
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()

		case "esc":
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}

		case "s":
			if m.currentView == ViewList {
				return m, m.openSettings()
			}

		case "r":
			if m.currentView == ViewList {
				return m, m.refresh()
			}

		case "R":
			if m.currentView == ViewList {
				return m, m.reconnect()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "Work Hub"
	if name := m.session.Settings.Value().DisplayName; name != "" {
		headerTitle += " · " + name
	}
	if m.view.UnreadCount > 0 {
		headerTitle = fmt.Sprintf("%s [%d new]", headerTitle, m.view.UnreadCount)
	}
	header := m.layout.RenderHeader(headerTitle, m.view.State.String())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.list.View()
	case ViewDetail:
		return m.detail.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show the latest failure prominently when present.
	if m.notice != "" && m.currentView == ViewList {
		return m.notice
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return ": close command | enter execute | esc back"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewSettings:
		return "enter next | esc cancel"
	default:
		if summary := m.list.FilterSummary(); summary != "" {
			return summary + " | :clear to reset"
		}
		return "q quit | ? help | / search | tab next tab | x read | X read all | r refresh"
	}
}
