package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/host/memhost"
	"github.com/lotas/sidestack/internal/menu"
	"github.com/lotas/sidestack/internal/render"
	"github.com/lotas/sidestack/internal/sidebar"
	"github.com/lotas/sidestack/internal/state"
	"github.com/lotas/sidestack/internal/types"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestListSkipsSeparator(t *testing.T) {
	var l ListModel
	l.SetFrame(render.Frame{Rows: []render.Row{
		{Kind: render.RowTab, TabID: 1},
		{Kind: render.RowSeparator},
		{Kind: render.RowNewTab},
	}})
	require.True(t, l.MoveDown())
	assert.Equal(t, 2, l.Cursor)
	assert.False(t, l.MoveDown())
	require.True(t, l.MoveUp())
	assert.Equal(t, 0, l.Cursor)
}

func TestSetFrameKeepsCursorOnRow(t *testing.T) {
	var l ListModel
	l.SetFrame(render.Frame{Rows: []render.Row{
		{Kind: render.RowTab, TabID: 1},
		{Kind: render.RowTab, TabID: 2},
	}})
	l.MoveDown()

	l.SetFrame(render.Frame{Rows: []render.Row{
		{Kind: render.RowTab, TabID: 3},
		{Kind: render.RowTab, TabID: 1},
		{Kind: render.RowTab, TabID: 2},
	}})
	row, ok := l.Selected()
	require.True(t, ok)
	assert.Equal(t, 2, row.TabID)
}

func TestListEmptyFrame(t *testing.T) {
	var l ListModel
	l.SetFrame(render.Frame{Empty: true})
	assert.Contains(t, l.View(time.Time{}), "No tabs match your search.")
}

func TestSettingsToggle(t *testing.T) {
	p := NewSettingsPicker(state.Settings{ThemeMode: render.ModeSystem})
	assert.Equal(t, render.ModeLight, p.Toggle().ThemeMode)
	assert.Equal(t, render.ModeDark, p.Toggle().ThemeMode)
	assert.Equal(t, render.ModeSystem, p.Toggle().ThemeMode)

	p.MoveDown()
	assert.True(t, p.Toggle().CompactMode)
	p.MoveDown()
	p.MoveDown()
	assert.True(t, p.Toggle().DuplicateDetection)
}

func TestMenuPickerStartsOnEnabledOption(t *testing.T) {
	p := NewMenuPicker("Tab", []menu.Option{
		{Key: "activate", Label: "Activate", Disabled: true},
		{Key: "close", Label: "Close"},
	})
	opt, ok := p.Selected()
	require.True(t, ok)
	assert.Equal(t, "close", opt.Key)
}

func newTestModel(t *testing.T) (Model, *memhost.Host) {
	t.Helper()
	h := memhost.New()
	h.AddGroup(types.Group{ID: 10, Title: "Work", Color: types.ColorBlue})
	h.AddTab(types.Tab{ID: 1, Title: "Pinned", URL: "https://a.example", Pinned: true, Active: true})
	h.AddTab(types.Tab{ID: 2, Title: "Docs", URL: "https://b.example", GroupID: 10})
	h.AddTab(types.Tab{ID: 3, Title: "CI", URL: "https://c.example", GroupID: 10})

	ctrl := sidebar.New(sidebar.Options{Host: h})
	m := NewModel(Options{Context: context.Background(), Controller: ctrl, HostLabel: "demo"})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	next, _ = next.Update(startedMsg{err: ctrl.Start(context.Background())})
	return next.(Model), h
}

func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, _ := m.Update(key(k))
	return next.(Model)
}

// pressAndWait sends a key, runs the host command it starts and feeds the
// resulting refresh back into the model.
func pressAndWait(t *testing.T, m Model, k string) Model {
	t.Helper()
	next, cmd := m.Update(key(k))
	require.NotNil(t, cmd)
	msg, ok := cmd().(refreshedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	next, _ = next.Update(msg)
	return next.(Model)
}

func TestModelExpandAndActivate(t *testing.T) {
	m, h := newTestModel(t)
	require.Len(t, m.list.Rows, 4)

	m = press(t, m, "j") // New Tab
	m = press(t, m, "j") // group
	row, _ := m.list.Selected()
	require.Equal(t, render.RowGroup, row.Kind)

	m = press(t, m, "enter")
	require.Len(t, m.list.Rows, 6)

	m = press(t, m, "j")
	row, _ = m.list.Selected()
	require.Equal(t, 2, row.TabID)

	m = pressAndWait(t, m, "enter")
	tabs, err := h.QueryTabs(context.Background(), host.Filter{})
	require.NoError(t, err)
	tab, ok := host.FindTab(tabs, 2)
	require.True(t, ok)
	assert.True(t, tab.Active)
}

func TestModelSearchAndClear(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "j")
	m = press(t, m, "j")
	m = press(t, m, "enter")

	m = press(t, m, "/")
	require.True(t, m.searching)
	for _, r := range "docs" {
		m = press(t, m, string(r))
	}
	assert.Equal(t, "docs", m.search.Value())
	var titles []string
	for _, r := range m.list.Rows {
		if r.Kind == render.RowTab || r.Kind == render.RowGroupTab {
			titles = append(titles, r.Title)
		}
	}
	assert.Equal(t, []string{"Docs"}, titles)

	m = press(t, m, "esc")
	assert.False(t, m.searching)
	assert.Empty(t, m.search.Value())
	assert.Len(t, m.list.Rows, 6)
}

func TestModelNoticeExpires(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(noticeMsg("Not supported by this browser"))
	m = next.(Model)
	assert.Equal(t, "Not supported by this browser", m.notice)

	next, _ = m.Update(noticeExpiredMsg{seq: m.noticeSeq - 1})
	m = next.(Model)
	assert.NotEmpty(t, m.notice, "stale expiry keeps a newer notice")

	next, _ = m.Update(noticeExpiredMsg{seq: m.noticeSeq})
	assert.Empty(t, next.(Model).notice)
}

func TestModelSavedNeedsDatabase(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "o")
	assert.Equal(t, overlayNone, m.overlay)
	assert.Equal(t, "Saved groups need a database", m.notice)
}
