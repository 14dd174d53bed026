package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/sidestack/internal/firefox"
)

// ErrCancelled is returned when the user leaves a picker without choosing.
var ErrCancelled = errors.New("cancelled")

// ProfilePicker selects a Firefox profile.
type ProfilePicker struct {
	Profiles []firefox.Profile
	Cursor   int
	Width    int
	Height   int

	chosen bool
}

func NewProfilePicker(profiles []firefox.Profile) ProfilePicker {
	// Pre-select the default profile
	cursor := 0
	for i, p := range profiles {
		if p.IsDefault {
			cursor = i
			break
		}
	}
	return ProfilePicker{Profiles: profiles, Cursor: cursor}
}

func (m *ProfilePicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
}

func (m *ProfilePicker) MoveDown() {
	if m.Cursor < len(m.Profiles)-1 {
		m.Cursor++
	}
}

func (m ProfilePicker) Selected() firefox.Profile {
	return m.Profiles[m.Cursor]
}

func (m ProfilePicker) Init() tea.Cmd { return nil }

func (m ProfilePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			m.MoveUp()
		case "down", "j":
			m.MoveDown()
		case "enter":
			m.chosen = true
			return m, tea.Quit
		case "esc", "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ProfilePicker) View() string {
	labels := make([]string, len(m.Profiles))
	for i, p := range m.Profiles {
		labels[i] = p.Name
		if p.IsDefault {
			labels[i] += " (default)"
		}
	}
	box := pickerBox("Select a Firefox profile:", labels, nil, m.Cursor, "↑↓ navigate · enter select · esc cancel")
	if m.Width == 0 {
		return box
	}
	return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, box)
}

// PickProfile asks the user to choose among profiles. A single profile is
// returned without asking.
func PickProfile(profiles []firefox.Profile) (firefox.Profile, error) {
	switch len(profiles) {
	case 0:
		return firefox.Profile{}, errors.New("no Firefox profiles found")
	case 1:
		return profiles[0], nil
	}
	final, err := tea.NewProgram(NewProfilePicker(profiles), tea.WithAltScreen()).Run()
	if err != nil {
		return firefox.Profile{}, err
	}
	p := final.(ProfilePicker)
	if !p.chosen {
		return firefox.Profile{}, ErrCancelled
	}
	return p.Selected(), nil
}
