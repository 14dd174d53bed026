package tabops

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/host/memhost"
	"github.com/lotas/sidestack/internal/state"
	"github.com/lotas/sidestack/internal/storage"
	"github.com/lotas/sidestack/internal/types"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/page/", "https://example.com/page"},
		{"https://example.com/page?b=2&a=1", "https://example.com/page?a=1&b=2"},
		{"https://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		if got := NormalizeURL(tt.input); got != tt.expected {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDuplicates(t *testing.T) {
	tabs := []types.Tab{
		{ID: 1, URL: "https://example.com/page#section1"},
		{ID: 2, URL: "https://example.com/page#section2"},
		{ID: 3, URL: "https://example.com/other"},
		{ID: 4, URL: "https://example.com/page?b=2&a=1"},
		{ID: 5, URL: "https://example.com/page?a=1&b=2"},
		{ID: 6, URL: ""},
		{ID: 7, URL: ""},
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 4: true, 5: true}, Duplicates(tabs))
}

func TestDuplicatesToCloseKeepsActive(t *testing.T) {
	tabs := []types.Tab{
		{ID: 1, Index: 0, URL: "https://a.example/x"},
		{ID: 2, Index: 1, URL: "https://a.example/x#y", Active: true},
		{ID: 3, Index: 2, URL: "https://b.example/"},
		{ID: 4, Index: 3, URL: "https://b.example/", Pinned: true},
		{ID: 5, Index: 4, URL: "https://c.example"},
	}
	assert.Equal(t, []int{1, 3}, DuplicatesToClose(tabs))
}

func TestCloseDuplicates(t *testing.T) {
	h := memhost.New()
	h.AddTab(types.Tab{URL: "https://a.example"})
	h.AddTab(types.Tab{URL: "https://a.example#top"})
	h.AddTab(types.Tab{URL: "https://b.example"})
	n, err := CloseDuplicates(context.Background(), h, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	tabs, _ := h.QueryTabs(context.Background(), host.Filter{WindowID: 1})
	assert.Len(t, tabs, 2)
}

func TestPickColor(t *testing.T) {
	assert.Equal(t, types.ColorGreen, PickColor("github.com"))
	assert.Equal(t, types.ColorGrey, PickColor("example.com"))
	assert.Equal(t, types.ColorBlue, PickColor("docs.google.com"))
	assert.Equal(t, types.ColorCyan, PickColor("a"))
}

func TestDomainGroupsIgnore(t *testing.T) {
	ignore, err := CompileIgnore([]string{"*.google.com"})
	require.NoError(t, err)
	tabs := []types.Tab{
		{ID: 1, Index: 0, URL: "https://docs.google.com/a"},
		{ID: 2, Index: 1, URL: "https://docs.google.com/b"},
		{ID: 3, Index: 2, URL: "https://go.dev/blog"},
		{ID: 4, Index: 3, URL: "https://go.dev/doc"},
		{ID: 5, Index: 4, URL: "https://go.dev/", Pinned: true},
		{ID: 6, Index: 5, URL: "https://lonely.example"},
		{ID: 7, Index: 6, URL: "chrome://settings"},
		{ID: 8, Index: 7, URL: "chrome://settings/people"},
	}
	domains, members := DomainGroups(tabs, ignore)
	assert.Equal(t, []string{"go.dev", "settings"}, domains)
	assert.Equal(t, []int{3, 4}, members["go.dev"])
}

func TestCompileIgnoreRejectsBadPattern(t *testing.T) {
	_, err := CompileIgnore([]string{"[unterminated"})
	assert.Error(t, err)
}

func TestGroupByDomain(t *testing.T) {
	h := memhost.New()
	h.AddTab(types.Tab{URL: "https://go.dev/blog"})
	h.AddTab(types.Tab{URL: "https://example.com"})
	h.AddTab(types.Tab{URL: "https://go.dev/doc"})
	ctx := context.Background()

	n, err := GroupByDomain(ctx, h, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	groups, err := h.QueryGroups(ctx, host.Filter{WindowID: 1})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "go.dev", groups[0].Title)
	assert.Equal(t, PickColor("go.dev"), groups[0].Color)
}

func TestGroupByDomainJoinsErrors(t *testing.T) {
	h := memhost.New()
	for _, u := range []string{"https://a.example/1", "https://a.example/2", "https://b.example/1", "https://b.example/2"} {
		h.AddTab(types.Tab{URL: u})
	}
	boom := errors.New("boom")
	h.FailOn(memhost.OpGroupTabs, boom)
	n, err := GroupByDomain(context.Background(), h, 1, nil)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, h.Calls(), 3, "both domains attempted after the first failure")
}

func newState(t *testing.T) *state.Manager {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "ops.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return state.NewManager(storage.NewKV(db))
}

func TestSuspendAndRestore(t *testing.T) {
	h := memhost.New()
	tab := h.AddTab(types.Tab{Title: "Docs", URL: "https://docs.example", FavIconURL: "https://docs.example/f.ico"})
	m := newState(t)
	ctx := context.Background()

	require.NoError(t, Suspend(ctx, h, m, tab.ID))
	st, err := m.Load(ctx)
	require.NoError(t, err)
	require.Len(t, st.SuspendedTabs, 1)
	assert.Equal(t, "https://docs.example/f.ico", st.SuspendedTabs[0].FavIconURL)
	tabs, _ := h.QueryTabs(ctx, host.Filter{})
	assert.True(t, tabs[0].Discarded)

	require.NoError(t, Restore(ctx, h, m, tab.ID))
	st, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.SuspendedTabs)
	tabs, _ = h.QueryTabs(ctx, host.Filter{})
	assert.False(t, tabs[0].Discarded)
}

func TestSuspendFailureLeavesNoRecord(t *testing.T) {
	h := memhost.New()
	tab := h.AddTab(types.Tab{Title: "Active", Active: true})
	m := newState(t)
	ctx := context.Background()

	assert.Error(t, Suspend(ctx, h, m, tab.ID))
	st, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.SuspendedTabs)
}
