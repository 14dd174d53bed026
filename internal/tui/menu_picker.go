package tui

import (
	"github.com/lotas/sidestack/internal/menu"
)

// MenuPicker is the context menu overlay of a tab or group.
type MenuPicker struct {
	Title   string
	Options []menu.Option
	Cursor  int
}

func NewMenuPicker(title string, opts []menu.Option) MenuPicker {
	m := MenuPicker{Title: title, Options: opts}
	for i, o := range opts {
		if !o.Disabled {
			m.Cursor = i
			break
		}
	}
	return m
}

func (m *MenuPicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *MenuPicker) MoveDown() {
	if m.Cursor < len(m.Options)-1 {
		m.Cursor++
	}
}

func (m MenuPicker) Selected() (menu.Option, bool) {
	if m.Cursor >= 0 && m.Cursor < len(m.Options) {
		return m.Options[m.Cursor], true
	}
	return menu.Option{}, false
}

func (m MenuPicker) View() string {
	labels := make([]string, len(m.Options))
	disabled := make([]bool, len(m.Options))
	for i, o := range m.Options {
		labels[i] = o.Label
		disabled[i] = o.Disabled
	}
	return pickerBox(m.Title, labels, disabled, m.Cursor, "↑↓ navigate · enter run · esc cancel")
}
