// Package sidebar drives one window's sidebar: it pulls tabs and groups from
// the host, merges them with the local UI state and keeps the latest frame.
//
// Refresh, ToggleGroup and Search are the only entry points that change what
// is drawn. Refresh may be called from several goroutines at once; the most
// recently issued refresh wins.
package sidebar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/gobwas/glob"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/dnd"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/menu"
	"github.com/lotas/sidestack/internal/render"
	"github.com/lotas/sidestack/internal/search"
	"github.com/lotas/sidestack/internal/state"
	"github.com/lotas/sidestack/internal/tabops"
	"github.com/lotas/sidestack/internal/types"
	"github.com/lotas/sidestack/internal/viewmodel"
)

// Options configures a Controller. Only Host is required.
type Options struct {
	Host       host.Host
	WindowID   int // 0 asks the host for its current window
	State      *state.Manager
	DB         *sql.DB
	Clipboard  menu.Clipboard
	Ignore     []glob.Glob
	SystemDark bool
	// Notify receives short user-facing notices. It must not block.
	Notify func(string)
}

// UIState is the per-session state that is never persisted.
type UIState struct {
	Search    string
	MenuTab   int // tab whose context menu is open
	MenuGroup int // group whose context menu is open
}

// Controller owns the sidebar state for one window.
type Controller struct {
	host       host.Host
	st         *state.Manager
	db         *sql.DB
	clip       menu.Clipboard
	ignore     []glob.Glob
	systemDark bool
	notify     func(string)

	mu       sync.Mutex
	windowID int
	ui       UIState
	render   *render.Engine
	settings state.Settings
	theme    state.Theme

	issued  uint64
	applied uint64

	tabs      []types.Tab
	groups    []types.Group
	suspended map[int]state.SuspendedTab
	pending   map[int]bool // optimistic pins
	items     []viewmodel.Item
	frame     render.Frame

	dragMu sync.Mutex
	drag   *dnd.Engine
}

// New returns a Controller. Call Start before the first frame is needed.
func New(o Options) *Controller {
	notify := o.Notify
	if notify == nil {
		notify = func(string) {}
	}
	c := &Controller{
		host:       o.Host,
		st:         o.State,
		db:         o.DB,
		clip:       o.Clipboard,
		ignore:     o.Ignore,
		systemDark: o.SystemDark,
		notify:     notify,
		windowID:   o.WindowID,
		render:     render.NewEngine(),
		settings:   state.DefaultSettings(),
		theme:      state.DefaultTheme(),
		suspended:  make(map[int]state.SuspendedTab),
		pending:    make(map[int]bool),
	}
	c.drag = dnd.New(o.Host, o.WindowID, func(ctx context.Context) {
		if err := c.Refresh(ctx); err != nil {
			applog.Error("refresh.failed", err, "after", "drop")
		}
	}, notify)
	return c
}

// Start resolves the window, migrates and loads the persisted state, paints
// a cached tab list when one is fresh, then does the first live refresh.
func (c *Controller) Start(ctx context.Context) error {
	if c.WindowID() == 0 {
		wid, err := c.host.CurrentWindow(ctx)
		if err != nil {
			return fmt.Errorf("current window: %w", err)
		}
		c.setWindow(wid)
	}

	cached := false
	if c.st != nil {
		if _, err := c.st.Migrate(ctx); err != nil {
			applog.Error("state.migrate", err)
		}
		if s, err := c.st.Settings(ctx); err == nil {
			c.mu.Lock()
			c.settings = s
			c.mu.Unlock()
		} else {
			applog.Error("settings.load", err)
		}
		if err := c.loadSuspended(ctx); err != nil {
			applog.Error("state.load", err)
		}
		if tc, err := c.st.CachedTabs(ctx, c.WindowID()); err != nil {
			applog.Warn("cache.load", "error", err)
		} else if tc != nil {
			c.mu.Lock()
			c.tabs, c.groups = tc.Tabs, tc.Groups
			c.rebuildLocked()
			c.mu.Unlock()
			cached = true
			applog.Info("cache.hit", "window", tc.WindowID, "tabs", len(tc.Tabs))
		}
	}

	if err := c.Refresh(ctx); err != nil {
		return err
	}
	if cached {
		if err := c.st.ClearTabsCache(ctx); err != nil {
			applog.Warn("cache.clear", "error", err)
		}
	}
	return nil
}

// Hide stores the current tab list so the next Start can paint at once.
func (c *Controller) Hide(ctx context.Context) error {
	if c.st == nil {
		return nil
	}
	c.mu.Lock()
	wid, tabs, groups := c.windowID, c.tabs, c.groups
	c.mu.Unlock()
	return c.st.CacheTabs(ctx, wid, tabs, groups)
}

// WindowID returns the window the sidebar shows.
func (c *Controller) WindowID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowID
}

func (c *Controller) setWindow(id int) {
	c.mu.Lock()
	c.windowID = id
	c.mu.Unlock()
	c.dragMu.Lock()
	c.drag.SetWindow(id)
	c.dragMu.Unlock()
}

// Refresh re-queries the host and re-renders. A refresh whose results
// arrive after those of a later refresh is dropped.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	wid := c.windowID
	c.mu.Unlock()

	f := host.Filter{WindowID: wid}
	tabs, err := c.host.QueryTabs(ctx, f)
	if err != nil {
		return fmt.Errorf("query tabs: %w", err)
	}
	groups, err := c.host.QueryGroups(ctx, f)
	if err != nil {
		return fmt.Errorf("query groups: %w", err)
	}
	host.SortTabs(tabs)
	if c.st != nil {
		if err := c.loadSuspended(ctx); err != nil {
			applog.Warn("state.load", "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq < c.applied {
		applog.Info("refresh.stale", "seq", seq, "applied", c.applied)
		return nil
	}
	c.applied = seq
	c.tabs, c.groups = tabs, groups
	for id, want := range c.pending {
		if t, ok := host.FindTab(tabs, id); !ok || t.Pinned == want {
			delete(c.pending, id)
		}
	}
	c.rebuildLocked()
	return nil
}

func (c *Controller) loadSuspended(ctx context.Context) error {
	st, err := c.st.Load(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.suspended = st.SuspendedByID()
	c.theme = st.Theme
	c.mu.Unlock()
	return nil
}

// ToggleGroup expands or collapses a group in the sidebar only.
func (c *Controller) ToggleGroup(groupID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.render.Toggle(groupID)
	c.rebuildLocked()
}

// Search filters the sidebar by a fuzzy term.
func (c *Controller) Search(term string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ui.Search = search.Normalize(term)
	c.rebuildLocked()
}

// UI returns a copy of the session state.
func (c *Controller) UI() UIState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ui
}

// Frame returns the latest rendering.
func (c *Controller) Frame() render.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// Items returns the latest view-model.
func (c *Controller) Items() []viewmodel.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

// Tabs returns the tabs of the latest refresh, in index order.
func (c *Controller) Tabs() []types.Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tabs
}

func (c *Controller) rebuildLocked() {
	in := viewmodel.Input{
		Tabs:     c.tabs,
		Groups:   c.groups,
		Search:   c.ui.Search,
		Expanded: c.render.Expanded(),
		Pinned:   make(map[int]bool),
	}
	for id, want := range c.pending {
		if want {
			in.Pinned[id] = true
		}
	}
	c.items = viewmodel.Build(in)

	ov := render.Overlay{
		Suspended: make(map[int]render.Suspended, len(c.suspended)),
		Theme:     render.ResolveTheme(c.settings.ThemeMode, c.systemDark, c.settings.CompactMode, c.theme.Palette.Accent),
	}
	for id, s := range c.suspended {
		ov.Suspended[id] = render.Suspended{Title: s.Title, URL: s.URL, FavIconURL: s.FavIconURL}
	}
	if c.settings.DuplicateDetection {
		ov.Duplicates = tabops.Duplicates(c.tabs)
	}
	c.frame = c.render.Render(c.items, ov)
}

// HandleEvent refreshes when the event concerns this window. It reports
// whether a refresh ran.
func (c *Controller) HandleEvent(ctx context.Context, ev host.Event) (bool, error) {
	if !ev.Concerns(c.WindowID()) {
		return false, nil
	}
	return true, c.Refresh(ctx)
}

// Activate switches to a tab. A tab the sidebar suspended is restored first.
func (c *Controller) Activate(ctx context.Context, tabID int) error {
	c.mu.Lock()
	_, suspended := c.suspended[tabID]
	c.mu.Unlock()

	return c.do(ctx, "activate", func() error {
		if suspended {
			if err := tabops.Restore(ctx, c.host, c.st, tabID); err != nil {
				return err
			}
		}
		active := true
		return c.host.UpdateTab(ctx, tabID, host.TabUpdate{Active: &active})
	})
}

// NewTab opens an empty tab in the window.
func (c *Controller) NewTab(ctx context.Context) error {
	return c.do(ctx, "new_tab", func() error {
		_, err := c.host.CreateTab(ctx, host.CreateTab{WindowID: c.WindowID(), Active: true})
		return err
	})
}

// TogglePin pins or unpins a tab. The sidebar shows the tab pinned before
// the host confirms.
func (c *Controller) TogglePin(ctx context.Context, tabID int) error {
	c.mu.Lock()
	t, ok := host.FindTab(c.tabs, tabID)
	if ok {
		c.pending[tabID] = !t.Pinned
		c.rebuildLocked()
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return c.do(ctx, "pin", func() error {
		pinned := !t.Pinned
		err := c.host.UpdateTab(ctx, tabID, host.TabUpdate{Pinned: &pinned})
		if err != nil {
			c.mu.Lock()
			delete(c.pending, tabID)
			c.mu.Unlock()
		}
		return err
	})
}

// Env is the menu environment for the current window.
func (c *Controller) Env() menu.Env {
	return menu.Env{
		Host:      c.host,
		WindowID:  c.WindowID(),
		State:     c.st,
		Clipboard: c.clip,
		DB:        c.db,
		Ignore:    c.ignore,
	}
}

// TabMenu builds the context menu for a tab of the latest refresh.
func (c *Controller) TabMenu(tabID int) ([]menu.Option, bool) {
	env := c.Env()
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := host.FindTab(c.tabs, tabID)
	if !ok {
		return nil, false
	}
	_, tracked := c.suspended[tabID]
	tc := menu.TabContext{
		Tab:       t,
		Suspended: tracked || t.Discarded,
		Duplicate: c.settings.DuplicateDetection && tabops.Duplicates(c.tabs)[tabID],
	}
	c.ui.MenuTab, c.ui.MenuGroup = tabID, 0
	return menu.TabOptions(env, tc), true
}

// GroupMenu builds the context menu for a group of the latest refresh.
func (c *Controller) GroupMenu(groupID int) ([]menu.Option, bool) {
	env := c.Env()
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := host.FindGroup(c.groups, groupID)
	if !ok {
		return nil, false
	}
	c.ui.MenuTab, c.ui.MenuGroup = 0, groupID
	return menu.GroupOptions(env, g, host.Members(c.tabs, groupID)), true
}

// Run performs a menu option and refreshes. Disabled options are rejected
// without touching the host.
func (c *Controller) Run(ctx context.Context, opt menu.Option) error {
	c.mu.Lock()
	c.ui.MenuTab, c.ui.MenuGroup = 0, 0
	c.mu.Unlock()
	if opt.Disabled {
		return menu.ErrDisabled
	}
	return c.do(ctx, opt.Key, func() error { return opt.Run(ctx) })
}

// do runs a host mutation, reports a failure as a notice and always
// refreshes afterwards.
func (c *Controller) do(ctx context.Context, action string, fn func() error) error {
	err := fn()
	if err != nil {
		applog.Error("action.failed", err, "action", action)
		c.notify(notice(err))
	} else {
		applog.Info("action", "action", action)
	}
	if rerr := c.Refresh(ctx); rerr != nil {
		applog.Error("refresh.failed", rerr, "after", action)
		if err == nil {
			err = rerr
		}
	}
	return err
}

func notice(err error) string {
	if errors.Is(err, host.ErrUnsupported) {
		return "Not supported by this browser"
	}
	return err.Error()
}

// StartDrag picks up a tab or a group.
func (c *Controller) StartDrag(src dnd.Source) bool {
	c.dragMu.Lock()
	defer c.dragMu.Unlock()
	return c.drag.Start(src)
}

// HoverRow marks the row as the drop target. It reports whether the row
// accepts the dragged item.
func (c *Controller) HoverRow(r render.Row, above bool) bool {
	var t dnd.Target
	switch r.Kind {
	case render.RowTab:
		t = dnd.Target{Kind: dnd.TargetTab, ID: r.TabID, GroupID: types.GroupIDNone, Above: above}
	case render.RowGroupTab:
		t = dnd.Target{Kind: dnd.TargetTab, ID: r.TabID, GroupID: r.GroupID, Above: above}
	case render.RowGroup:
		t = dnd.Target{Kind: dnd.TargetGroup, ID: r.GroupID, Above: above}
	default:
		c.dragMu.Lock()
		c.drag.Leave()
		c.dragMu.Unlock()
		return false
	}
	c.dragMu.Lock()
	defer c.dragMu.Unlock()
	return c.drag.Hover(t)
}

// CancelDrag ends a gesture without moving anything.
func (c *Controller) CancelDrag() {
	c.dragMu.Lock()
	defer c.dragMu.Unlock()
	c.drag.Cancel()
}

// Dragging returns the dragged item and whether a gesture is in progress.
func (c *Controller) Dragging() (dnd.Source, dnd.Target, dnd.Phase) {
	c.dragMu.Lock()
	defer c.dragMu.Unlock()
	return c.drag.Source(), c.drag.Target(), c.drag.Phase()
}

// Drop applies the gesture. The drag engine refreshes afterwards. The
// gesture lock is released before any host call, so Dragging and a new
// StartDrag do not wait on the browser.
func (c *Controller) Drop(ctx context.Context) dnd.Result {
	c.dragMu.Lock()
	g, ok := c.drag.Take()
	c.dragMu.Unlock()
	if !ok {
		return dnd.Result{Outcome: dnd.Ignored}
	}
	return c.drag.Apply(ctx, g)
}

// Settings returns the active settings.
func (c *Controller) Settings() state.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// SaveSettings stores settings and re-renders with them.
func (c *Controller) SaveSettings(ctx context.Context, s state.Settings) error {
	if c.st != nil {
		if err := c.st.SaveSettings(ctx, s); err != nil {
			return err
		}
		if _, err := c.st.SetThemeMode(ctx, s.ThemeMode); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings = s
	c.theme.Mode = s.ThemeMode
	c.rebuildLocked()
	return nil
}
