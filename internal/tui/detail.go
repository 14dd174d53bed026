package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/sidestack/internal/render"
	"github.com/lotas/sidestack/internal/types"
)

// DetailModel is the footer describing the row under the cursor.
type DetailModel struct {
	Width int
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return string(r) + "…"
}

// ViewRow renders up to two lines for row. tabs are the window's tabs and
// are used to find the URL of a tab row.
func (m DetailModel) ViewRow(row render.Row, ok bool, tabs []types.Tab) string {
	if !ok {
		return ""
	}
	labelStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	var b strings.Builder
	switch row.Kind {
	case render.RowTab, render.RowGroupTab:
		b.WriteString(labelStyle.Render("Title ") + truncate(row.Title, m.Width-7))
		var url string
		for _, t := range tabs {
			if t.ID == row.TabID {
				url = t.URL
				break
			}
		}
		b.WriteString("\n" + labelStyle.Render("URL   ") + dimStyle.Render(truncate(url, m.Width-7)))
	case render.RowGroup:
		b.WriteString(labelStyle.Render("Group ") + truncate(row.Title, m.Width-7))
		state := "collapsed"
		if row.Expanded {
			state = "expanded"
		}
		b.WriteString("\n" + dimStyle.Render(state))
	case render.RowNewTab:
		b.WriteString(dimStyle.Render("Open a new tab in this window"))
	}
	return b.String()
}
