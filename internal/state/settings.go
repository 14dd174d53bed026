package state

import (
	"context"
	"encoding/json"
	"fmt"
)

// Settings are the user's sidebar preferences.
type Settings struct {
	ThemeMode          string `json:"themeMode"`
	CompactMode        bool   `json:"compactMode"`
	DuplicateDetection bool   `json:"duplicateDetection"`
}

// DefaultSettings are written on first read.
func DefaultSettings() Settings {
	return Settings{ThemeMode: "system", CompactMode: true, DuplicateDetection: true}
}

type rawSettings struct {
	ThemeMode          *string `json:"themeMode"`
	CompactMode        *bool   `json:"compactMode"`
	DuplicateDetection *bool   `json:"duplicateDetection"`
}

// Settings returns the stored settings with defaults for missing fields.
// When nothing is stored the defaults are written.
func (m *Manager) Settings(ctx context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok, err := m.store.Get(ctx, SettingsKey)
	if err != nil {
		return Settings{}, err
	}
	s := DefaultSettings()
	if !ok {
		return s, m.saveSettingsLocked(ctx, s)
	}
	var raw rawSettings
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if raw.ThemeMode != nil {
		s.ThemeMode = *raw.ThemeMode
	}
	if raw.CompactMode != nil {
		s.CompactMode = *raw.CompactMode
	}
	if raw.DuplicateDetection != nil {
		s.DuplicateDetection = *raw.DuplicateDetection
	}
	return s, nil
}

// SaveSettings replaces the stored settings.
func (m *Manager) SaveSettings(ctx context.Context, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveSettingsLocked(ctx, s)
}

func (m *Manager) saveSettingsLocked(ctx context.Context, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return m.store.Set(ctx, SettingsKey, data)
}
