// Package cdphost drives a Chromium browser through its DevTools endpoint.
//
// DevTools exposes pages but not tab strips: there are no tab groups, no
// pinning and no way to reorder tabs, so those operations report
// host.ErrUnsupported. Tab indices follow the order in which pages were first
// seen. The connection itself opens one blank page, which is hidden.
package cdphost

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

// Host is a host.Host backed by the DevTools protocol.
type Host struct {
	ctx    context.Context // chromedp browser context
	cancel context.CancelFunc
	own    target.ID
	events chan host.Event

	mu     sync.Mutex
	reg    registry
	active target.ID
}

var _ host.Host = (*Host)(nil)

// Dial connects to a DevTools websocket URL such as
// ws://127.0.0.1:9222/devtools/browser/<id>.
func Dial(ctx context.Context, url string) (*Host, error) {
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), url)
	bctx, cancelCtx := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelCtx()
		cancelAlloc()
	}

	// The first Run connects and creates the page chromedp keeps for itself.
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}

	h := &Host{
		ctx:    bctx,
		cancel: cancel,
		events: make(chan host.Event, 64),
		reg:    newRegistry(),
	}
	if c := chromedp.FromContext(bctx); c != nil && c.Target != nil {
		h.own = c.Target.TargetID
	}

	chromedp.ListenBrowser(bctx, h.onEvent)
	if err := target.SetDiscoverTargets(true).Do(h.exec(ctx)); err != nil {
		h.Close()
		return nil, fmt.Errorf("discover targets: %w", err)
	}
	applog.Info("cdp.connected", "url", url)
	return h, nil
}

// Close disconnects from the browser. The browser keeps running.
func (h *Host) Close() {
	h.cancel()
}

// exec binds a call context to the browser-level executor.
func (h *Host) exec(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(h.ctx).Browser)
}

func (h *Host) onEvent(ev any) {
	var out host.Event
	switch ev := ev.(type) {
	case *target.EventTargetCreated:
		if ev.TargetInfo.Type != "page" || ev.TargetInfo.TargetID == h.own {
			return
		}
		out = host.Event{Kind: host.TabCreated, TabID: h.tabID(ev.TargetInfo.TargetID)}
	case *target.EventTargetInfoChanged:
		if ev.TargetInfo.Type != "page" || ev.TargetInfo.TargetID == h.own {
			return
		}
		out = host.Event{Kind: host.TabUpdated, TabID: h.tabID(ev.TargetInfo.TargetID)}
	case *target.EventTargetDestroyed:
		h.mu.Lock()
		id, ok := h.reg.lookup(ev.TargetID)
		h.reg.forget(ev.TargetID)
		h.mu.Unlock()
		if !ok {
			return
		}
		out = host.Event{Kind: host.TabRemoved, TabID: id}
	default:
		return
	}
	select {
	case h.events <- out:
	default:
	}
}

func (h *Host) tabID(tid target.ID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reg.id(tid)
}

func (h *Host) Events() <-chan host.Event {
	return h.events
}

// pages lists the page targets in first-seen order, without our own page.
func (h *Host) pages(ctx context.Context) ([]*target.Info, error) {
	infos, err := chromedp.Targets(h.ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reg.pages(infos, h.own), nil
}

func (h *Host) windowOf(ctx context.Context, tid target.ID) (int, error) {
	wid, _, err := browser.GetWindowForTarget().WithTargetID(tid).Do(h.exec(ctx))
	if err != nil {
		return 0, fmt.Errorf("window for %s: %w", tid, err)
	}
	return int(wid), nil
}

func (h *Host) CurrentWindow(ctx context.Context) (int, error) {
	pages, err := h.pages(ctx)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()
	for _, p := range pages {
		if p.TargetID == active {
			return h.windowOf(ctx, p.TargetID)
		}
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("no open pages: %w", host.ErrNotFound)
	}
	return h.windowOf(ctx, pages[0].TargetID)
}

func (h *Host) QueryTabs(ctx context.Context, f host.Filter) ([]types.Tab, error) {
	if f.GroupID > 0 {
		return nil, nil
	}
	pages, err := h.pages(ctx)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()

	next := make(map[int]int) // window -> next index
	var tabs []types.Tab
	for _, p := range pages {
		wid, err := h.windowOf(ctx, p.TargetID)
		if err != nil {
			applog.Warn("cdp.window", "target", p.TargetID, "error", err)
			continue
		}
		idx := next[wid]
		next[wid]++
		if f.WindowID != 0 && wid != f.WindowID {
			continue
		}
		tabs = append(tabs, types.Tab{
			ID:       h.tabID(p.TargetID),
			Index:    idx,
			WindowID: wid,
			Title:    p.Title,
			URL:      p.URL,
			Active:   p.TargetID == active,
			GroupID:  types.GroupIDNone,
		})
	}
	return tabs, nil
}

// QueryGroups always returns no groups.
func (h *Host) QueryGroups(ctx context.Context, f host.Filter) ([]types.Group, error) {
	return nil, nil
}

func (h *Host) targetOf(tabID int) (target.ID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tid, ok := h.reg.target(tabID)
	if !ok {
		return "", fmt.Errorf("tab %d: %w", tabID, host.ErrNotFound)
	}
	return tid, nil
}

func unsupported(op string) error {
	return fmt.Errorf("%s over devtools: %w", op, host.ErrUnsupported)
}

func (h *Host) MoveTab(ctx context.Context, tabID, index int) error {
	return unsupported("move tab")
}

func (h *Host) MoveTabs(ctx context.Context, tabIDs []int, index int) error {
	return unsupported("move tabs")
}

func (h *Host) MoveTabToWindow(ctx context.Context, tabID, windowID int) error {
	return unsupported("move tab to window")
}

func (h *Host) GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	return 0, unsupported("group tabs")
}

func (h *Host) UngroupTabs(ctx context.Context, tabIDs []int) error {
	return unsupported("ungroup tabs")
}

func (h *Host) UpdateGroup(ctx context.Context, groupID int, u host.GroupUpdate) error {
	return unsupported("update group")
}

func (h *Host) DiscardTab(ctx context.Context, tabID int) error {
	return unsupported("discard tab")
}

func (h *Host) ReloadTab(ctx context.Context, tabID int) error {
	return unsupported("reload tab")
}

func (h *Host) RemoveTab(ctx context.Context, tabID int) error {
	tid, err := h.targetOf(tabID)
	if err != nil {
		return err
	}
	if err := target.CloseTarget(tid).Do(h.exec(ctx)); err != nil {
		return fmt.Errorf("close tab %d: %w", tabID, err)
	}
	return nil
}

func (h *Host) DuplicateTab(ctx context.Context, tabID int) (types.Tab, error) {
	pages, err := h.pages(ctx)
	if err != nil {
		return types.Tab{}, err
	}
	tid, err := h.targetOf(tabID)
	if err != nil {
		return types.Tab{}, err
	}
	for _, p := range pages {
		if p.TargetID == tid {
			return h.open(ctx, p.URL, false)
		}
	}
	return types.Tab{}, fmt.Errorf("tab %d: %w", tabID, host.ErrNotFound)
}

func (h *Host) UpdateTab(ctx context.Context, tabID int, u host.TabUpdate) error {
	if u.Pinned != nil {
		return unsupported("pin tab")
	}
	if u.Active == nil || !*u.Active {
		return nil
	}
	tid, err := h.targetOf(tabID)
	if err != nil {
		return err
	}
	if err := target.ActivateTarget(tid).Do(h.exec(ctx)); err != nil {
		return fmt.Errorf("activate tab %d: %w", tabID, err)
	}
	h.mu.Lock()
	h.active = tid
	h.mu.Unlock()
	return nil
}

func (h *Host) CreateTab(ctx context.Context, c host.CreateTab) (types.Tab, error) {
	if c.Pinned {
		return types.Tab{}, unsupported("pinned tab")
	}
	t, err := h.open(ctx, c.URL, false)
	if err != nil {
		return types.Tab{}, err
	}
	if c.Active {
		active := true
		if err := h.UpdateTab(ctx, t.ID, host.TabUpdate{Active: &active}); err != nil {
			return t, err
		}
		t.Active = true
	}
	return t, nil
}

// CreateWindow reopens the tab's page in a new window and closes the
// original; DevTools cannot move a page between windows.
func (h *Host) CreateWindow(ctx context.Context, tabID int) (int, error) {
	pages, err := h.pages(ctx)
	if err != nil {
		return 0, err
	}
	tid, err := h.targetOf(tabID)
	if err != nil {
		return 0, err
	}
	url := ""
	for _, p := range pages {
		if p.TargetID == tid {
			url = p.URL
		}
	}
	t, err := h.open(ctx, url, true)
	if err != nil {
		return 0, err
	}
	if err := h.RemoveTab(ctx, tabID); err != nil {
		return t.WindowID, err
	}
	return t.WindowID, nil
}

func (h *Host) open(ctx context.Context, url string, newWindow bool) (types.Tab, error) {
	if url == "" {
		url = "about:blank"
	}
	create := target.CreateTarget(url)
	if newWindow {
		create = create.WithNewWindow(true)
	}
	tid, err := create.Do(h.exec(ctx))
	if err != nil {
		return types.Tab{}, fmt.Errorf("open %s: %w", url, err)
	}
	wid, err := h.windowOf(ctx, tid)
	if err != nil {
		return types.Tab{}, err
	}
	return types.Tab{
		ID:       h.tabID(tid),
		WindowID: wid,
		URL:      url,
		Title:    url,
		GroupID:  types.GroupIDNone,
	}, nil
}
