// Package styles holds the lipgloss colors and styles shared by the
// dashboard, the CLI reports and the snackbar notifier.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on both black and dark surfaces
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple (violet-400)
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red (red-400)
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	SurfaceColor   = lipgloss.Color("#1F2937") // Dark surface
	TextColor      = lipgloss.Color("#F9FAFB") // Light text
	BorderColor    = lipgloss.Color("#6B7280") // Gray (gray-500)
	InfoColor      = lipgloss.Color("#60A5FA") // Blue

	// Convenience styles for colors
	Primary   = lipgloss.NewStyle().Foreground(PrimaryColor)
	Secondary = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning   = lipgloss.NewStyle().Foreground(WarningColor)
	Error     = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted     = lipgloss.NewStyle().Foreground(MutedColor)
	Text      = lipgloss.NewStyle().Foreground(TextColor)

	// Base styles
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)

	// Runtime selector
	RuntimeActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextColor).
			Background(PrimaryColor).
			Padding(0, 2)

	RuntimeInactive = lipgloss.NewStyle().
			Foreground(MutedColor).
			Padding(0, 2)

	// Help bar
	HelpBar = lipgloss.NewStyle().
		Foreground(MutedColor).
		MarginTop(1)

	HelpKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(SecondaryColor)

	// Header
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(BorderColor).
		MarginBottom(1).
		PaddingBottom(1)

	// Content area
	ContentBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	// Footer / status bar
	StatusBar = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Padding(0, 1)

	// Snackbar notification
	Snackbar = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(SurfaceColor).
			Padding(0, 1)

	ErrorMsg = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	SuccessMsg = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	WarningMsg = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	// Validation findings
	FindingLocation = lipgloss.NewStyle().
			Foreground(MutedColor)

	FindingCode = lipgloss.NewStyle().
			Foreground(InfoColor)
)

// StatusColor returns the color for a validation status
// ("PASS", "FAIL", "UNKNOWN") or a finding severity ("ERROR", "WARNING").
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "PASS":
		return SecondaryColor
	case "FAIL", "ERROR":
		return ErrorColor
	case "WARNING":
		return WarningColor
	case "VALIDATING":
		return InfoColor
	default:
		return MutedColor
	}
}

// StatusIcon returns an icon for a validation status or finding severity.
func StatusIcon(status string) string {
	switch status {
	case "PASS":
		return "✓"
	case "FAIL", "ERROR":
		return "✗"
	case "WARNING":
		return "!"
	case "VALIDATING":
		return "⏱"
	default:
		return "●"
	}
}

// SeverityStyle returns the message style for a notification severity
// ("debug", "info", "warning", "error", "critical").
func SeverityStyle(severity string) lipgloss.Style {
	switch severity {
	case "error", "critical":
		return ErrorMsg
	case "warning":
		return WarningMsg
	case "info":
		return SuccessMsg
	default:
		return Muted
	}
}

// StatusStyle returns a bold style in the StatusColor of status.
func StatusStyle(status string) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(StatusColor(status))
}
