package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailmerge/internal/keys"
	"github.com/nhle/mailmerge/internal/theme"
)

// templateHelp explains the placeholder syntax used in subject and body.
var templateHelp = []string{
	"{Name}     value of the chosen name column",
	"{Email}    recipient address",
	"{Column}   any column header, as written in the sheet",
	"Unknown fields render empty. Unbalanced braces send the text as typed.",
}

// Model lists the key bindings and the template syntax.
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

// View renders the bindings followed by the template reference.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	section := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginTop(1)
	tmpl := theme.HelpStyle.Render(strings.Join(templateHelp, "\n"))

	content := lipgloss.JoinVertical(lipgloss.Left,
		title, helpText,
		section.Render("Templates"), tmpl,
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
