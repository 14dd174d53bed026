package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/sidestack/internal/render"
)

// ListModel shows the rows of a frame with a cursor and keeps the cursor
// visible while scrolling.
type ListModel struct {
	Rows   []render.Row
	Theme  render.Theme
	Empty  bool
	Cursor int
	Offset int
	Width  int
	Height int

	// AnimStart is when the rows with Animate set began to appear.
	AnimStart time.Time

	// Drag decorations, keyed by rowKey.
	DragSource string
	DropTarget string
	DropAbove  bool
	DropValid  bool
}

func rowKey(r render.Row) string {
	return fmt.Sprintf("%d:%d:%d", r.Kind, r.TabID, r.GroupID)
}

// SetFrame replaces the rows and keeps the cursor on the same row when it
// still exists.
func (m *ListModel) SetFrame(f render.Frame) {
	var key string
	if r, ok := m.Selected(); ok {
		key = rowKey(r)
	}
	m.Rows = f.Rows
	m.Theme = f.Theme
	m.Empty = f.Empty

	m.Cursor = min(m.Cursor, len(m.Rows)-1)
	for i, r := range m.Rows {
		if rowKey(r) == key {
			m.Cursor = i
			break
		}
	}
	if m.Cursor < 0 {
		m.Cursor = 0
	}
	if len(m.Rows) > 0 && !m.Rows[m.Cursor].Selectable() {
		m.MoveDown()
	}
	m.clampOffset()
}

// Animating reports whether any row is still waiting for its reveal delay.
func (m ListModel) Animating(now time.Time) bool {
	for _, r := range m.Rows {
		if r.Animate && now.Sub(m.AnimStart) < r.Delay {
			return true
		}
	}
	return false
}

// HasAnimation reports whether the rows carry any animation at all.
func (m ListModel) HasAnimation() bool {
	for _, r := range m.Rows {
		if r.Animate {
			return true
		}
	}
	return false
}

func (m *ListModel) MoveUp() bool {
	for i := m.Cursor - 1; i >= 0; i-- {
		if m.Rows[i].Selectable() {
			m.Cursor = i
			m.clampOffset()
			return true
		}
	}
	return false
}

func (m *ListModel) MoveDown() bool {
	for i := m.Cursor + 1; i < len(m.Rows); i++ {
		if m.Rows[i].Selectable() {
			m.Cursor = i
			m.clampOffset()
			return true
		}
	}
	return false
}

// Selected returns the row under the cursor.
func (m ListModel) Selected() (render.Row, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Rows) {
		return render.Row{}, false
	}
	return m.Rows[m.Cursor], true
}

func (m *ListModel) clampOffset() {
	if m.Height <= 0 {
		return
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
	if m.Offset < 0 {
		m.Offset = 0
	}
}

type palette struct {
	text   lipgloss.Color
	dim    lipgloss.Color
	accent lipgloss.Color
	dup    lipgloss.Color
}

func paletteFor(t render.Theme) palette {
	p := palette{text: "252", dim: "240", accent: "62", dup: "33"}
	if !t.Dark {
		p.text, p.dim = "235", "245"
	}
	if t.Accent != "" {
		p.accent = lipgloss.Color(t.Accent)
	}
	return p
}

func (m ListModel) View(now time.Time) string {
	if m.Empty {
		return lipgloss.NewStyle().Faint(true).Padding(1, 2).Render("No tabs match your search.")
	}

	height := m.Height
	if height <= 0 {
		height = len(m.Rows)
	}
	end := min(m.Offset+height, len(m.Rows))

	pal := paletteFor(m.Theme)
	var b strings.Builder
	for i := m.Offset; i < end; i++ {
		line := m.renderRow(m.Rows[i], pal, now)
		if i == m.Cursor {
			line = lipgloss.NewStyle().Reverse(true).Width(m.Width).Render(line)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m ListModel) renderRow(r render.Row, pal palette, now time.Time) string {
	text := lipgloss.NewStyle().Foreground(pal.text)
	dim := lipgloss.NewStyle().Foreground(pal.dim)
	accent := lipgloss.NewStyle().Foreground(pal.accent)

	width := m.Width
	if width <= 0 {
		width = 40
	}

	var line string
	switch r.Kind {
	case render.RowNewTab:
		line = accent.Render("+ New Tab")
	case render.RowSeparator:
		return dim.Render(strings.Repeat("─", width))
	case render.RowGroup:
		arrow := "▶"
		if r.Expanded {
			arrow = "▼"
		}
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(r.Color)).Render("●")
		count := fmt.Sprintf("%d", r.Count)
		if !m.Theme.Compact {
			count = fmt.Sprintf("(%d tabs)", r.Count)
		}
		line = fmt.Sprintf("%s %s %s %s", arrow, swatch, text.Bold(true).Render(r.Title), dim.Render(count))
	case render.RowTab, render.RowGroupTab:
		line = m.tabLine(r, pal, text, dim, accent)
	}

	key := rowKey(r)
	switch key {
	case m.DragSource:
		line = accent.Render("⇅ ") + line
	case m.DropTarget:
		mark := "↓ "
		if m.DropAbove {
			mark = "↑ "
		}
		if !m.DropValid {
			mark = "✕ "
		}
		line = accent.Render(mark) + line
	}

	style := lipgloss.NewStyle().MaxWidth(width)
	if r.Animate && now.Sub(m.AnimStart) < r.Delay {
		style = style.Faint(true)
	}
	return style.Render(line)
}

func (m ListModel) tabLine(r render.Row, pal palette, text, dim, accent lipgloss.Style) string {
	var b strings.Builder
	if r.Kind == render.RowGroupTab {
		b.WriteString("   ")
	}
	if r.Active {
		b.WriteString(accent.Render("▌"))
	} else {
		b.WriteString(" ")
	}
	b.WriteString(iconGlyph(r.Icon) + " ")

	title := text
	if r.Active {
		title = title.Bold(true)
	}
	if r.Suspended {
		title = dim.Italic(true)
	}
	b.WriteString(title.Render(r.Title))

	var markers []string
	if r.Pinned {
		markers = append(markers, dim.Render("pinned"))
	}
	if r.Audible {
		markers = append(markers, accent.Render("♪"))
	}
	if r.Suspended {
		markers = append(markers, dim.Render("zz"))
	}
	if r.Duplicate {
		markers = append(markers, lipgloss.NewStyle().Foreground(pal.dup).Render("⇄"))
	}
	if len(markers) > 0 {
		b.WriteString(" " + strings.Join(markers, " "))
	}
	return b.String()
}

func iconGlyph(i render.Icon) string {
	switch i.Kind {
	case render.IconFavicon:
		return "◉"
	case render.IconBrowserPage:
		return "⚙"
	case render.IconURL:
		return "◈"
	default:
		return "○"
	}
}
