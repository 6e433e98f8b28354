package config

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/workhub/internal/filter"
	"github.com/nhle/workhub/internal/model"
	"github.com/nhle/workhub/internal/theme"
)

// SettingsSavedMsg carries the settings the user confirmed.
type SettingsSavedMsg struct {
	Settings model.ProfileSettings
}

// ConfigDoneMsg signals the settings view should close without saving.
type ConfigDoneMsg struct{}

// Model edits the profile settings shared between running instances.
type Model struct {
	form *huh.Form

	// Form field values (huh binds to these)
	formName     string
	formLanguage string
	formTab      string

	current       model.ProfileSettings
	width, height int
}

// New creates a settings view for current.
func New(current model.ProfileSettings, width, height int) Model {
	m := Model{width: width, height: height}
	m.Reset(current)
	return m
}

// Reset rebuilds the form from s, discarding unsaved edits.
func (m *Model) Reset(s model.ProfileSettings) {
	m.current = s
	m.formName = s.DisplayName
	m.formLanguage = s.Language
	if m.formLanguage == "" {
		m.formLanguage = "en"
	}
	m.formTab = string(filter.ParseTab(s.DefaultTab))
	m.form = m.buildForm()
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	tabOptions := make([]huh.Option[string], len(filter.Tabs))
	for i, t := range filter.Tabs {
		tabOptions[i] = huh.NewOption(t.Label(), string(t))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Display name").
				Description("Shown in the header of every running instance").
				Placeholder("Jane Doe").
				Value(&m.formName).
				Validate(validateRequired("Display name")),
			huh.NewSelect[string]().
				Title("Language").
				Description("Relative times are rendered in this language").
				Options(
					huh.NewOption("English", "en"),
					huh.NewOption("한국어", "ko"),
				).
				Value(&m.formLanguage),
			huh.NewSelect[string]().
				Title("Default tab").
				Options(tabOptions...).
				Value(&m.formTab),
		),
	).WithWidth(m.formWidth())
}

// Update forwards messages to the form and reports completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
	}
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		saved := m.current
		saved.DisplayName = strings.TrimSpace(m.formName)
		saved.Language = m.formLanguage
		saved.DefaultTab = m.formTab
		m.current = saved
		return m, func() tea.Msg { return SettingsSavedMsg{Settings: saved} }
	case huh.StateAborted:
		return m, func() tea.Msg { return ConfigDoneMsg{} }
	}

	return m, cmd
}

// View renders the settings form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Profile Settings"),
		m.form.View(),
	)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
