package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// pickerBox draws a titled list in the rounded box all overlays share.
// Disabled lines are drawn faint and cannot be confirmed.
func pickerBox(title string, labels []string, disabled []bool, cursor int, help string) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	faintStyle := normalStyle.Faint(true)
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n\n")
	for i, label := range labels {
		off := i < len(disabled) && disabled[i]
		switch {
		case i == cursor && off:
			label = selectedStyle.Faint(true).Render("> " + label)
		case i == cursor:
			label = selectedStyle.Render("> " + label)
		case off:
			label = faintStyle.Render("  " + label)
		default:
			label = normalStyle.Render("  " + label)
		}
		b.WriteString(label + "\n")
	}
	b.WriteString("\n" + normalStyle.Faint(true).Render(help))
	return boxStyle.Render(b.String())
}
