package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// renderNavbar draws the top bar: the app name, the host it talks to, counts
// and, on the right, the search field when one is open.
func renderNavbar(hostLabel string, tabs, groups int, search string, width int) string {
	nameStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	hostStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statsStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	sep := statsStyle.Render(" · ")

	left := " " + nameStyle.Render("sidestack") + sep + hostStyle.Render(hostLabel) + sep +
		statsStyle.Render(fmt.Sprintf("%d tabs", tabs)) + sep +
		statsStyle.Render(fmt.Sprintf("%d groups", groups))

	if search == "" {
		return left
	}
	gap := width - lipgloss.Width(left) - lipgloss.Width(search) - 1
	if gap < 1 {
		gap = 1
	}
	padding := lipgloss.NewStyle().Width(gap)
	return left + padding.Render("") + search + " "
}
