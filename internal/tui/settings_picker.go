package tui

import (
	"fmt"

	"github.com/lotas/sidestack/internal/render"
	"github.com/lotas/sidestack/internal/state"
)

var themeModes = []string{render.ModeSystem, render.ModeLight, render.ModeDark}

// SettingsPicker edits the sidebar settings. Each change is applied and
// saved at once.
type SettingsPicker struct {
	Settings state.Settings
	Cursor   int
}

func NewSettingsPicker(s state.Settings) SettingsPicker {
	return SettingsPicker{Settings: s}
}

const settingsRows = 3

func (m *SettingsPicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *SettingsPicker) MoveDown() {
	if m.Cursor < settingsRows-1 {
		m.Cursor++
	}
}

// Toggle changes the setting under the cursor and returns the new settings.
func (m *SettingsPicker) Toggle() state.Settings {
	switch m.Cursor {
	case 0:
		m.Settings.ThemeMode = nextTheme(m.Settings.ThemeMode)
	case 1:
		m.Settings.CompactMode = !m.Settings.CompactMode
	case 2:
		m.Settings.DuplicateDetection = !m.Settings.DuplicateDetection
	}
	return m.Settings
}

func nextTheme(mode string) string {
	for i, t := range themeModes {
		if t == mode {
			return themeModes[(i+1)%len(themeModes)]
		}
	}
	return themeModes[0]
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (m SettingsPicker) View() string {
	labels := []string{
		fmt.Sprintf("Theme: %s", m.Settings.ThemeMode),
		fmt.Sprintf("Compact mode: %s", onOff(m.Settings.CompactMode)),
		fmt.Sprintf("Duplicate detection: %s", onOff(m.Settings.DuplicateDetection)),
	}
	return pickerBox("Settings", labels, nil, m.Cursor, "↑↓ navigate · enter change · esc close")
}
