package cmd

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#7D56F4")).Padding(0, 1)
)

// row renders a label column of fixed width followed by a value.
func row(label string, width int, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Width(width).Render(label),
		valueStyle.Render(value),
	)
}
