package sidebar

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/sidestack/internal/dnd"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/host/memhost"
	"github.com/lotas/sidestack/internal/menu"
	"github.com/lotas/sidestack/internal/render"
	"github.com/lotas/sidestack/internal/state"
	"github.com/lotas/sidestack/internal/storage"
	"github.com/lotas/sidestack/internal/types"
)

// scenario seeds one pinned tab and a group of two.
func scenario() *memhost.Host {
	h := memhost.New()
	h.AddGroup(types.Group{ID: 10, Title: "G", Color: types.ColorBlue})
	h.AddTab(types.Tab{ID: 1, Title: "A", URL: "https://a.example", Pinned: true})
	h.AddTab(types.Tab{ID: 2, Title: "B", URL: "https://b.example", GroupID: 10})
	h.AddTab(types.Tab{ID: 3, Title: "C", URL: "https://c.example", GroupID: 10})
	return h
}

func newState(t *testing.T) *state.Manager {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "sidebar.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return state.NewManager(storage.NewKV(db))
}

type rowSummary struct {
	Kind  render.RowKind
	Tab   int
	Group int
}

func summarize(f render.Frame) []rowSummary {
	var out []rowSummary
	for _, r := range f.Rows {
		out = append(out, rowSummary{Kind: r.Kind, Tab: r.TabID, Group: r.GroupID})
	}
	return out
}

func TestExpandedGroupScenario(t *testing.T) {
	c := New(Options{Host: scenario()})
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, 1, c.WindowID())

	c.ToggleGroup(10)
	f := c.Frame()
	assert.Equal(t, []rowSummary{
		{Kind: render.RowTab, Tab: 1},
		{Kind: render.RowSeparator},
		{Kind: render.RowNewTab},
		{Kind: render.RowGroup, Group: 10},
		{Kind: render.RowGroupTab, Tab: 2, Group: 10},
		{Kind: render.RowGroupTab, Tab: 3, Group: 10},
	}, summarize(f))
	assert.True(t, f.Rows[4].Animate)
	assert.Equal(t, render.StaggerStep, f.Rows[5].Delay)

	require.NoError(t, c.Refresh(ctx))
	assert.False(t, c.Frame().Rows[4].Animate, "animation runs once")
}

func TestSearchScenario(t *testing.T) {
	c := New(Options{Host: scenario()})
	require.NoError(t, c.Start(context.Background()))
	c.ToggleGroup(10)

	c.Search("c")
	assert.Equal(t, "c", c.UI().Search)
	assert.Equal(t, []rowSummary{
		{Kind: render.RowNewTab},
		{Kind: render.RowGroup, Group: 10},
		{Kind: render.RowGroupTab, Tab: 3, Group: 10},
	}, summarize(c.Frame()))

	c.Search("zzzz")
	assert.True(t, c.Frame().Empty)
}

// gatedHost blocks the first QueryGroups call until released.
type gatedHost struct {
	*memhost.Host
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedHost) QueryGroups(ctx context.Context, f host.Filter) ([]types.Group, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Host.QueryGroups(ctx, f)
}

func TestLaterRefreshWins(t *testing.T) {
	h := &gatedHost{Host: scenario(), entered: make(chan struct{}), release: make(chan struct{})}
	c := New(Options{Host: h, WindowID: 1})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-h.entered

	h.AddTab(types.Tab{ID: 4, Title: "D", URL: "https://d.example"})
	require.NoError(t, c.Refresh(ctx))
	close(h.release)
	require.NoError(t, <-done)

	assert.Len(t, c.Tabs(), 4, "the older refresh must not overwrite the newer one")
}

func TestHandleEventFiltersWindow(t *testing.T) {
	h := scenario()
	c := New(Options{Host: h, WindowID: 1})
	ctx := context.Background()

	ran, err := c.HandleEvent(ctx, host.Event{Kind: host.TabCreated, WindowID: 2})
	require.NoError(t, err)
	assert.False(t, ran)

	h.AddTab(types.Tab{Title: "new"})
	ran, err = c.HandleEvent(ctx, host.Event{Kind: host.TabCreated, WindowID: 1})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Len(t, c.Tabs(), 4)
}

func TestRunFailureNotifiesAndRefreshes(t *testing.T) {
	h := scenario()
	var notices []string
	c := New(Options{Host: h, WindowID: 1, Notify: func(s string) { notices = append(notices, s) }})
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	boom := errors.New("tab is gone")
	h.FailOn(memhost.OpRemoveTab, boom)
	opts, ok := c.TabMenu(1)
	require.True(t, ok)
	assert.Equal(t, 1, c.UI().MenuTab)

	var closeOpt menu.Option
	for _, o := range opts {
		if o.Key == "close" {
			closeOpt = o
		}
	}
	h.ResetCalls()
	err := c.Run(ctx, closeOpt)
	assert.ErrorIs(t, err, boom)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "tab is gone")
	assert.Equal(t, []string{memhost.OpRemoveTab, memhost.OpQueryTabs, memhost.OpQueryGroups}, h.Calls())
	assert.Zero(t, c.UI().MenuTab)
}

func TestRunDisabledTouchesNothing(t *testing.T) {
	h := memhost.New()
	h.AddTab(types.Tab{ID: 1, Title: "A", Active: true})
	c := New(Options{Host: h, WindowID: 1})
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	opts, ok := c.TabMenu(1)
	require.True(t, ok)
	h.ResetCalls()
	for _, o := range opts {
		if o.Key == "suspend" {
			assert.ErrorIs(t, c.Run(ctx, o), menu.ErrDisabled)
		}
	}
	assert.Empty(t, h.Calls())

	_, ok = c.TabMenu(99)
	assert.False(t, ok)
}

func TestGroupMenu(t *testing.T) {
	c := New(Options{Host: scenario(), WindowID: 1})
	require.NoError(t, c.Refresh(context.Background()))
	opts, ok := c.GroupMenu(10)
	require.True(t, ok)
	assert.Equal(t, "Close All Tabs", opts[0].Label)
	assert.Equal(t, 10, c.UI().MenuGroup)
}

func TestCachedFirstPaint(t *testing.T) {
	m := newState(t)
	ctx := context.Background()
	require.NoError(t, m.CacheTabs(ctx, 1, []types.Tab{
		{ID: 7, Index: 0, WindowID: 1, Title: "cached", GroupID: types.GroupIDNone},
	}, nil))

	h := memhost.New()
	h.FailOn(memhost.OpQueryTabs, errors.New("host not ready"))
	c := New(Options{Host: h, State: m})
	assert.Error(t, c.Start(ctx))
	rows := c.Frame().Rows
	require.Len(t, rows, 2)
	assert.Equal(t, 7, rows[1].TabID)

	cache, err := m.CachedTabs(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, cache, "cache survives a failed live refresh")
}

func TestStartClearsCacheAndHideWritesIt(t *testing.T) {
	m := newState(t)
	ctx := context.Background()
	require.NoError(t, m.CacheTabs(ctx, 1, []types.Tab{{ID: 7, GroupID: types.GroupIDNone}}, nil))

	c := New(Options{Host: scenario(), State: m})
	require.NoError(t, c.Start(ctx))
	cache, err := m.CachedTabs(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, cache)

	require.NoError(t, c.Hide(ctx))
	cache, err = m.CachedTabs(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, cache)
	assert.Len(t, cache.Tabs, 3)
}

func TestSuspendedOverlayAndActivate(t *testing.T) {
	m := newState(t)
	ctx := context.Background()
	h := memhost.New()
	h.AddTab(types.Tab{ID: 1, Title: "Active", Active: true})
	h.AddTab(types.Tab{ID: 2, Title: "", URL: "https://docs.example", Discarded: true})
	_, err := m.UpsertSuspended(ctx, state.SuspendedTab{ID: 2, Title: "Docs", URL: "https://docs.example"})
	require.NoError(t, err)

	c := New(Options{Host: h, State: m})
	require.NoError(t, c.Start(ctx))
	row := c.Frame().Rows[2]
	assert.Equal(t, "Docs", row.Title)
	assert.True(t, row.Suspended)

	require.NoError(t, c.Activate(ctx, 2))
	st, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.SuspendedTabs)
	tab, ok := host.FindTab(c.Tabs(), 2)
	require.True(t, ok)
	assert.True(t, tab.Active)
	assert.False(t, tab.Discarded)
}

func TestTogglePin(t *testing.T) {
	h := memhost.New()
	h.AddTab(types.Tab{ID: 1, Title: "one"})
	h.AddTab(types.Tab{ID: 2, Title: "two"})
	c := New(Options{Host: h, WindowID: 1})
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	require.NoError(t, c.TogglePin(ctx, 2))
	tab, _ := host.FindTab(c.Tabs(), 2)
	assert.True(t, tab.Pinned)
	assert.Equal(t, 0, tab.Index)

	h.FailOn(memhost.OpUpdateTab, errors.New("nope"))
	assert.Error(t, c.TogglePin(ctx, 1))
	assert.False(t, c.Items()[1].Pinned, "optimistic pin rolled back")
}

func TestDuplicatesMarked(t *testing.T) {
	h := memhost.New()
	h.AddTab(types.Tab{ID: 1, URL: "https://a.example/#x"})
	h.AddTab(types.Tab{ID: 2, URL: "https://a.example/"})
	h.AddTab(types.Tab{ID: 3, URL: "https://b.example/"})
	c := New(Options{Host: h, WindowID: 1})
	require.NoError(t, c.Refresh(context.Background()))

	rows := c.Frame().Rows
	assert.True(t, rows[1].Duplicate)
	assert.True(t, rows[2].Duplicate)
	assert.False(t, rows[3].Duplicate)

	s := c.Settings()
	s.DuplicateDetection = false
	require.NoError(t, c.SaveSettings(context.Background(), s))
	assert.False(t, c.Frame().Rows[1].Duplicate)
}

func TestDragDropThroughRows(t *testing.T) {
	h := memhost.New()
	for i := 1; i <= 4; i++ {
		h.AddTab(types.Tab{ID: i})
	}
	c := New(Options{Host: h, WindowID: 1})
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	require.True(t, c.StartDrag(dnd.Tab(1)))
	target := c.Frame().Rows[3] // tab 3
	require.Equal(t, 3, target.TabID)
	require.True(t, c.HoverRow(target, false))
	_, _, phase := c.Dragging()
	assert.Equal(t, dnd.Over, phase)

	assert.False(t, c.HoverRow(c.Frame().Rows[0], false), "new tab row is not a target")
	require.True(t, c.HoverRow(target, false))

	res := c.Drop(ctx)
	require.Equal(t, dnd.Moved, res.Outcome)

	var order []int
	for _, tab := range c.Tabs() {
		order = append(order, tab.ID)
	}
	assert.Equal(t, []int{2, 3, 1, 4}, order, "the frame was refreshed after the drop")
}

// slowMoveHost blocks MoveTab until released.
type slowMoveHost struct {
	*memhost.Host
	entered chan struct{}
	release chan struct{}
}

func (s *slowMoveHost) MoveTab(ctx context.Context, tabID, index int) error {
	close(s.entered)
	<-s.release
	return s.Host.MoveTab(ctx, tabID, index)
}

func TestDragStateAvailableWhileDropPending(t *testing.T) {
	mh := memhost.New()
	for i := 1; i <= 3; i++ {
		mh.AddTab(types.Tab{ID: i})
	}
	h := &slowMoveHost{Host: mh, entered: make(chan struct{}), release: make(chan struct{})}
	c := New(Options{Host: h, WindowID: 1})
	ctx := context.Background()
	require.NoError(t, c.Refresh(ctx))

	require.True(t, c.StartDrag(dnd.Tab(1)))
	require.True(t, c.HoverRow(render.Row{Kind: render.RowTab, TabID: 3}, false))

	done := make(chan dnd.Result, 1)
	go func() { done <- c.Drop(ctx) }()
	<-h.entered

	polled := make(chan dnd.Phase, 1)
	go func() {
		_, _, phase := c.Dragging()
		polled <- phase
	}()
	select {
	case phase := <-polled:
		assert.Equal(t, dnd.Idle, phase)
	case <-time.After(time.Second):
		t.Fatal("Dragging blocked while the drop waited on the host")
	}
	assert.True(t, c.StartDrag(dnd.Tab(2)), "a new drag can start during a pending drop")
	c.CancelDrag()

	close(h.release)
	assert.Equal(t, dnd.Moved, (<-done).Outcome)
}
