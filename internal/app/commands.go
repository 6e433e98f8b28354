package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/workhub/internal/filter"
	"github.com/nhle/workhub/internal/sync"
	"github.com/nhle/workhub/internal/ui/command"
)

// mutationDoneMsg reports a finished center call. Failures also arrive
// as notices; this only clears a stale notice on success.
type mutationDoneMsg struct {
	err error
}

func (m Model) markRead(id string) tea.Cmd {
	c, ctx := m.session.Center, m.ctx
	return func() tea.Msg {
		return mutationDoneMsg{err: c.MarkRead(ctx, id)}
	}
}

func (m Model) markAllRead() tea.Cmd {
	c, ctx := m.session.Center, m.ctx
	return func() tea.Msg {
		return mutationDoneMsg{err: c.MarkAllRead(ctx)}
	}
}

func (m Model) refresh() tea.Cmd {
	c, ctx := m.session.Center, m.ctx
	return func() tea.Msg {
		if c.State() == sync.StateDisabled {
			return nil
		}
		return mutationDoneMsg{err: c.Refresh(ctx)}
	}
}

// reconnect drops the stream and connects again, keeping the set and
// the cursor. Nothing happens while signed out.
func (m Model) reconnect() tea.Cmd {
	s, ctx := m.session, m.ctx
	return func() tea.Msg {
		if !s.AuthFlag.Value() {
			return nil
		}
		s.Center.Shutdown()
		return mutationDoneMsg{err: s.Center.Enable(ctx, sync.EnableOptions{})}
	}
}

func (m *Model) openSettings() tea.Cmd {
	m.previousView = m.currentView
	m.currentView = ViewSettings
	m.settingsView.Reset(m.session.Settings.Value())
	m.settingsView.SetSize(m.layout.ContentWidth(), m.layout.ContentHeight())
	return m.settingsView.Init()
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd command.CommandMsg) tea.Cmd {
	switch cmd.Name() {
	case "refresh", "sync":
		return m.refresh()
	case "reconnect":
		return m.reconnect()
	case "read-all", "readall":
		return m.markAllRead()
	case "tab":
		m.list.SetTab(filter.ParseTab(cmd.Arg()))
		m.currentView = ViewList
		return nil
	case "clear":
		m.list.ClearFilters()
		m.notice = ""
		m.currentView = ViewList
		return nil
	case "settings", "config":
		return m.openSettings()
	case "logout":
		m.session.SignOut()
		m.notice = "signed out"
		return nil
	case "quit", "q":
		m.feed.Stop()
		return tea.Quit
	default:
		return nil
	}
}
