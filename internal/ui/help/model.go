package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workhub/internal/keys"
	"github.com/nhle/workhub/internal/theme"
)

// states is the connection legend shown under the shortcuts.
var states = []struct{ name, meaning string }{
	{"live", "stream open, updates arrive as they happen"},
	{"connecting", "loading the snapshot and opening the stream"},
	{"reconnecting", "stream dropped, retrying shortly"},
	{"disabled", "signed out or stopped"},
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	var legend strings.Builder
	legend.WriteString(titleStyle.MarginTop(1).Render("Connection"))
	for _, s := range states {
		legend.WriteString("\n")
		legend.WriteString(theme.StateStyle(s.name).Width(16).Render(s.name))
		legend.WriteString(theme.HelpStyle.Render(s.meaning))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText, legend.String())

	return theme.DetailPanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
