package theme

import (
	"log/slog"

	"github.com/charmbracelet/lipgloss"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps a content panel.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// LabelStyle renders field labels in summaries.
var LabelStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Width(14)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle is used for inline error messages.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// SuccessStyle is used for inline confirmations.
var SuccessStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ModeStyle returns a badge style for the run mode.
func ModeStyle(dryRun bool) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if dryRun {
		return base.Foreground(ColorWhite).Background(ColorMagenta)
	}
	return base.Foreground(ColorWhite).Background(ColorRed)
}

// OutcomeStyle returns a color-coded style for a row outcome label.
func OutcomeStyle(outcome string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch outcome {
	case "sent":
		return base.Foreground(ColorGreen)
	case "dry-run":
		return base.Foreground(ColorMagenta)
	case "skipped":
		return base.Foreground(ColorYellow)
	case "error":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// LevelStyle returns the style for a log line at the given level.
func LevelStyle(level slog.Level) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return lipgloss.NewStyle().Foreground(ColorRed)
	case level >= slog.LevelWarn:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	default:
		return lipgloss.NewStyle().Foreground(ColorWhite)
	}
}
