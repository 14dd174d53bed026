// Package memhost is an in-memory browser. It backs the demo mode and serves
// as the host in tests, where individual operations can be made to fail.
package memhost

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

// Operation names accepted by FailOn and reported by Calls.
const (
	OpQueryTabs       = "QueryTabs"
	OpQueryGroups     = "QueryGroups"
	OpMoveTab         = "MoveTab"
	OpMoveTabs        = "MoveTabs"
	OpMoveGroup       = "MoveGroup"
	OpMoveTabToWindow = "MoveTabToWindow"
	OpGroupTabs       = "GroupTabs"
	OpUngroupTabs     = "UngroupTabs"
	OpUpdateGroup     = "UpdateGroup"
	OpDiscardTab      = "DiscardTab"
	OpReloadTab       = "ReloadTab"
	OpRemoveTab       = "RemoveTab"
	OpDuplicateTab    = "DuplicateTab"
	OpUpdateTab       = "UpdateTab"
	OpCreateTab       = "CreateTab"
	OpCreateWindow    = "CreateWindow"
)

// Host is an in-memory host.Host. The zero value is not usable; call New.
type Host struct {
	mu        sync.Mutex
	windows   map[int][]*types.Tab // ordered by index
	groups    map[int]*types.Group
	current   int
	nextTab   int
	nextGroup int
	nextWin   int

	noGroupMove bool
	faults      map[string]error
	calls       []string
	events      chan host.Event
}

// New returns a host with one empty window, which is the current window.
func New() *Host {
	h := &Host{
		windows:   make(map[int][]*types.Tab),
		groups:    make(map[int]*types.Group),
		nextTab:   1,
		nextGroup: 1,
		nextWin:   1,
		faults:    make(map[string]error),
		events:    make(chan host.Event, 128),
	}
	h.current = h.newWindowLocked()
	return h
}

var _ host.Host = (*Host)(nil)
var _ host.GroupMover = (*Host)(nil)

// DisableGroupMove makes MoveGroup report host.ErrUnsupported.
func (h *Host) DisableGroupMove() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.noGroupMove = true
}

// FailOn makes every later call of op return err. A nil err clears the fault.
func (h *Host) FailOn(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.faults, op)
		return
	}
	h.faults[op] = err
}

// Calls returns the operation names called so far, in order.
func (h *Host) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

// ResetCalls forgets recorded calls.
func (h *Host) ResetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

// AddGroup seeds a group in the current window and returns it with its ID.
func (h *Host) AddGroup(g types.Group) types.Group {
	h.mu.Lock()
	defer h.mu.Unlock()
	if g.ID == 0 {
		g.ID = h.nextGroup
	}
	if g.ID >= h.nextGroup {
		h.nextGroup = g.ID + 1
	}
	if g.WindowID == 0 {
		g.WindowID = h.current
	}
	if g.Color == "" {
		g.Color = types.ColorGrey
	}
	gg := g
	h.groups[g.ID] = &gg
	return g
}

// AddTab seeds a tab at the end of its window and returns it with its ID and
// index set. A zero GroupID means ungrouped.
func (h *Host) AddTab(t types.Tab) types.Tab {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t.ID == 0 {
		t.ID = h.nextTab
	}
	if t.ID >= h.nextTab {
		h.nextTab = t.ID + 1
	}
	if t.WindowID == 0 {
		t.WindowID = h.current
	}
	if t.GroupID == 0 {
		t.GroupID = types.GroupIDNone
	}
	if _, ok := h.windows[t.WindowID]; !ok {
		h.windows[t.WindowID] = nil
		if t.WindowID >= h.nextWin {
			h.nextWin = t.WindowID + 1
		}
	}
	tt := t
	h.windows[t.WindowID] = append(h.windows[t.WindowID], &tt)
	h.reindexLocked(t.WindowID)
	return tt
}

func (h *Host) Events() <-chan host.Event {
	return h.events
}

func (h *Host) CurrentWindow(ctx context.Context) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, nil
}

func (h *Host) QueryTabs(ctx context.Context, f host.Filter) ([]types.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpQueryTabs); err != nil {
		return nil, err
	}
	var out []types.Tab
	for wid, tabs := range h.windows {
		if f.WindowID != 0 && wid != f.WindowID {
			continue
		}
		for _, t := range tabs {
			if f.GroupID != 0 && t.GroupID != f.GroupID {
				continue
			}
			out = append(out, *t)
		}
	}
	host.SortTabs(out)
	return out, nil
}

func (h *Host) QueryGroups(ctx context.Context, f host.Filter) ([]types.Group, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpQueryGroups); err != nil {
		return nil, err
	}
	var out []types.Group
	for _, g := range h.groups {
		if f.WindowID != 0 && g.WindowID != f.WindowID {
			continue
		}
		if f.GroupID != 0 && g.ID != f.GroupID {
			continue
		}
		out = append(out, *g)
	}
	var tabs []types.Tab
	for _, ws := range h.windows {
		for _, t := range ws {
			tabs = append(tabs, *t)
		}
	}
	host.AssignPositions(out, tabs)
	sortGroups(out)
	return out, nil
}

func (h *Host) MoveTab(ctx context.Context, tabID, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpMoveTab); err != nil {
		return err
	}
	t, err := h.tabLocked(tabID)
	if err != nil {
		return err
	}
	h.placeLocked(t.WindowID, []int{tabID}, index)
	h.emitLocked(host.Event{Kind: host.TabMoved, WindowID: t.WindowID, TabID: tabID})
	return nil
}

func (h *Host) MoveTabs(ctx context.Context, tabIDs []int, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpMoveTabs); err != nil {
		return err
	}
	return h.moveBlockLocked(tabIDs, index)
}

// MoveGroup moves every tab of the group as one block.
func (h *Host) MoveGroup(ctx context.Context, groupID, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpMoveGroup); err != nil {
		return err
	}
	if h.noGroupMove {
		return fmt.Errorf("move group %d: %w", groupID, host.ErrUnsupported)
	}
	g, ok := h.groups[groupID]
	if !ok {
		return fmt.Errorf("group %d: %w", groupID, host.ErrNotFound)
	}
	var ids []int
	for _, t := range h.windows[g.WindowID] {
		if t.GroupID == groupID {
			ids = append(ids, t.ID)
		}
	}
	if err := h.moveBlockLocked(ids, index); err != nil {
		return err
	}
	h.emitLocked(host.Event{Kind: host.GroupMoved, WindowID: g.WindowID, GroupID: groupID})
	return nil
}

func (h *Host) MoveTabToWindow(ctx context.Context, tabID, windowID int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpMoveTabToWindow); err != nil {
		return err
	}
	if _, ok := h.windows[windowID]; !ok {
		return fmt.Errorf("window %d: %w", windowID, host.ErrNotFound)
	}
	t, err := h.tabLocked(tabID)
	if err != nil {
		return err
	}
	from := t.WindowID
	h.detachLocked(from, tabID)
	t.WindowID = windowID
	t.GroupID = types.GroupIDNone
	h.windows[windowID] = append(h.windows[windowID], t)
	h.reindexLocked(windowID)
	h.pruneGroupsLocked()
	h.emitLocked(host.Event{Kind: host.TabRemoved, WindowID: from, TabID: tabID})
	h.emitLocked(host.Event{Kind: host.TabCreated, WindowID: windowID, TabID: tabID})
	return nil
}

func (h *Host) GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpGroupTabs); err != nil {
		return 0, err
	}
	if len(tabIDs) == 0 {
		return 0, fmt.Errorf("group tabs: no tabs given")
	}
	first, err := h.tabLocked(tabIDs[0])
	if err != nil {
		return 0, err
	}
	wid := first.WindowID

	kind := host.GroupUpdated
	var g *types.Group
	if groupID == 0 {
		g = &types.Group{ID: h.nextGroup, Color: types.ColorGrey, WindowID: wid}
		h.nextGroup++
		h.groups[g.ID] = g
		kind = host.GroupCreated
	} else {
		var ok bool
		g, ok = h.groups[groupID]
		if !ok {
			return 0, fmt.Errorf("group %d: %w", groupID, host.ErrNotFound)
		}
		wid = g.WindowID
	}

	// Members stay contiguous: new members follow the existing ones, a new
	// group forms where its first tab was.
	anchor := first.Index
	for _, id := range tabIDs {
		if t, err := h.tabLocked(id); err == nil && t.WindowID == wid && t.Index < anchor {
			anchor = t.Index
		}
	}
	for _, t := range h.windows[wid] {
		if t.GroupID == g.ID {
			anchor = t.Index + 1
		}
	}
	for _, id := range tabIDs {
		t, err := h.tabLocked(id)
		if err != nil {
			return 0, err
		}
		if t.WindowID != wid {
			h.detachLocked(t.WindowID, id)
			t.WindowID = wid
			h.windows[wid] = append(h.windows[wid], t)
			h.reindexLocked(wid)
		}
		t.Pinned = false
		t.GroupID = g.ID
	}
	var ids []int
	for _, t := range h.windows[wid] {
		if t.GroupID == g.ID {
			ids = append(ids, t.ID)
		}
	}
	before := 0
	for _, t := range h.windows[wid] {
		if t.Index < anchor && t.GroupID != g.ID {
			before++
		}
	}
	h.placeLocked(wid, ids, before)
	h.pruneGroupsLocked()
	h.emitLocked(host.Event{Kind: kind, WindowID: wid, GroupID: g.ID})
	return g.ID, nil
}

func (h *Host) UngroupTabs(ctx context.Context, tabIDs []int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpUngroupTabs); err != nil {
		return err
	}
	for _, id := range tabIDs {
		t, err := h.tabLocked(id)
		if err != nil {
			return err
		}
		t.GroupID = types.GroupIDNone
		h.emitLocked(host.Event{Kind: host.TabUpdated, WindowID: t.WindowID, TabID: id})
	}
	h.pruneGroupsLocked()
	return nil
}

func (h *Host) UpdateGroup(ctx context.Context, groupID int, u host.GroupUpdate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpUpdateGroup); err != nil {
		return err
	}
	g, ok := h.groups[groupID]
	if !ok {
		return fmt.Errorf("group %d: %w", groupID, host.ErrNotFound)
	}
	if u.Title != nil {
		g.Title = *u.Title
	}
	if u.Color != nil {
		if !u.Color.Valid() {
			return fmt.Errorf("group %d: invalid color %q", groupID, *u.Color)
		}
		g.Color = *u.Color
	}
	if u.Collapsed != nil {
		g.Collapsed = *u.Collapsed
	}
	h.emitLocked(host.Event{Kind: host.GroupUpdated, WindowID: g.WindowID, GroupID: groupID})
	return nil
}

func (h *Host) DiscardTab(ctx context.Context, tabID int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpDiscardTab); err != nil {
		return err
	}
	t, err := h.tabLocked(tabID)
	if err != nil {
		return err
	}
	if t.Active {
		return fmt.Errorf("discard tab %d: tab is active", tabID)
	}
	t.Discarded = true
	h.emitLocked(host.Event{Kind: host.TabUpdated, WindowID: t.WindowID, TabID: tabID})
	return nil
}

func (h *Host) ReloadTab(ctx context.Context, tabID int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpReloadTab); err != nil {
		return err
	}
	t, err := h.tabLocked(tabID)
	if err != nil {
		return err
	}
	t.Discarded = false
	h.emitLocked(host.Event{Kind: host.TabUpdated, WindowID: t.WindowID, TabID: tabID})
	return nil
}

func (h *Host) RemoveTab(ctx context.Context, tabID int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpRemoveTab); err != nil {
		return err
	}
	t, err := h.tabLocked(tabID)
	if err != nil {
		return err
	}
	h.detachLocked(t.WindowID, tabID)
	h.pruneGroupsLocked()
	h.emitLocked(host.Event{Kind: host.TabRemoved, WindowID: t.WindowID, TabID: tabID})
	return nil
}

func (h *Host) DuplicateTab(ctx context.Context, tabID int) (types.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpDuplicateTab); err != nil {
		return types.Tab{}, err
	}
	t, err := h.tabLocked(tabID)
	if err != nil {
		return types.Tab{}, err
	}
	dup := *t
	dup.ID = h.nextTab
	h.nextTab++
	dup.Active = false
	dup.Discarded = false
	ws := h.windows[t.WindowID]
	at := t.Index + 1
	ws = append(ws, nil)
	copy(ws[at+1:], ws[at:])
	ws[at] = &dup
	h.windows[t.WindowID] = ws
	h.reindexLocked(t.WindowID)
	h.emitLocked(host.Event{Kind: host.TabCreated, WindowID: t.WindowID, TabID: dup.ID})
	return dup, nil
}

func (h *Host) UpdateTab(ctx context.Context, tabID int, u host.TabUpdate) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpUpdateTab); err != nil {
		return err
	}
	t, err := h.tabLocked(tabID)
	if err != nil {
		return err
	}
	if u.Active != nil && *u.Active {
		for _, o := range h.windows[t.WindowID] {
			o.Active = o.ID == tabID
		}
		t.Discarded = false
		h.current = t.WindowID
		h.emitLocked(host.Event{Kind: host.TabActivated, WindowID: t.WindowID, TabID: tabID})
	}
	if u.Pinned != nil && *u.Pinned != t.Pinned {
		pinnedCount := 0
		for _, o := range h.windows[t.WindowID] {
			if o.Pinned {
				pinnedCount++
			}
		}
		t.Pinned = *u.Pinned
		if t.Pinned {
			// Pinned tabs leave their group and join the pinned block.
			t.GroupID = types.GroupIDNone
			h.placeLocked(t.WindowID, []int{tabID}, pinnedCount)
			h.pruneGroupsLocked()
		} else {
			h.placeLocked(t.WindowID, []int{tabID}, pinnedCount-1)
		}
		h.emitLocked(host.Event{Kind: host.TabUpdated, WindowID: t.WindowID, TabID: tabID})
	}
	return nil
}

func (h *Host) CreateTab(ctx context.Context, c host.CreateTab) (types.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpCreateTab); err != nil {
		return types.Tab{}, err
	}
	wid := c.WindowID
	if wid == 0 {
		wid = h.current
	}
	if _, ok := h.windows[wid]; !ok {
		return types.Tab{}, fmt.Errorf("window %d: %w", wid, host.ErrNotFound)
	}
	t := &types.Tab{
		ID:       h.nextTab,
		WindowID: wid,
		URL:      c.URL,
		Title:    c.URL,
		GroupID:  types.GroupIDNone,
		Pinned:   c.Pinned,
	}
	h.nextTab++
	h.windows[wid] = append(h.windows[wid], t)
	h.reindexLocked(wid)
	if c.Active {
		for _, o := range h.windows[wid] {
			o.Active = o.ID == t.ID
		}
	}
	h.emitLocked(host.Event{Kind: host.TabCreated, WindowID: wid, TabID: t.ID})
	return *t, nil
}

func (h *Host) CreateWindow(ctx context.Context, tabID int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.enterLocked(OpCreateWindow); err != nil {
		return 0, err
	}
	t, err := h.tabLocked(tabID)
	if err != nil {
		return 0, err
	}
	from := t.WindowID
	wid := h.newWindowLocked()
	h.detachLocked(from, tabID)
	t.WindowID = wid
	t.GroupID = types.GroupIDNone
	t.Active = true
	h.windows[wid] = []*types.Tab{t}
	h.reindexLocked(wid)
	h.pruneGroupsLocked()
	h.emitLocked(host.Event{Kind: host.TabRemoved, WindowID: from, TabID: tabID})
	return wid, nil
}

func (h *Host) enterLocked(op string) error {
	h.calls = append(h.calls, op)
	if err, ok := h.faults[op]; ok {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (h *Host) newWindowLocked() int {
	id := h.nextWin
	h.nextWin++
	h.windows[id] = nil
	return id
}

func (h *Host) tabLocked(id int) (*types.Tab, error) {
	for _, tabs := range h.windows {
		for _, t := range tabs {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("tab %d: %w", id, host.ErrNotFound)
}

func (h *Host) detachLocked(wid, tabID int) {
	ws := h.windows[wid]
	for i, t := range ws {
		if t.ID == tabID {
			h.windows[wid] = append(ws[:i:i], ws[i+1:]...)
			break
		}
	}
	h.reindexLocked(wid)
}

// placeLocked removes ids from the window and reinserts them as a block so
// the first lands at index, clamped to the window.
func (h *Host) placeLocked(wid int, ids []int, index int) {
	moving := make(map[int]bool, len(ids))
	for _, id := range ids {
		moving[id] = true
	}
	byID := make(map[int]*types.Tab)
	var rest []*types.Tab
	for _, t := range h.windows[wid] {
		if moving[t.ID] {
			byID[t.ID] = t
			continue
		}
		rest = append(rest, t)
	}
	if index < 0 || index > len(rest) {
		index = len(rest)
	}
	out := make([]*types.Tab, 0, len(rest)+len(ids))
	out = append(out, rest[:index]...)
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	out = append(out, rest[index:]...)
	h.windows[wid] = out
	h.reindexLocked(wid)
}

func (h *Host) moveBlockLocked(ids []int, index int) error {
	if len(ids) == 0 {
		return nil
	}
	first, err := h.tabLocked(ids[0])
	if err != nil {
		return err
	}
	wid := first.WindowID
	for _, id := range ids[1:] {
		t, err := h.tabLocked(id)
		if err != nil {
			return err
		}
		if t.WindowID != wid {
			return fmt.Errorf("move tabs: tab %d is in window %d, not %d", id, t.WindowID, wid)
		}
	}
	h.placeLocked(wid, ids, index)
	for _, id := range ids {
		h.emitLocked(host.Event{Kind: host.TabMoved, WindowID: wid, TabID: id})
	}
	return nil
}

func (h *Host) reindexLocked(wid int) {
	for i, t := range h.windows[wid] {
		t.Index = i
	}
}

// pruneGroupsLocked drops groups that lost their last tab.
func (h *Host) pruneGroupsLocked() {
	used := make(map[int]bool)
	for _, ws := range h.windows {
		for _, t := range ws {
			used[t.GroupID] = true
		}
	}
	for id, g := range h.groups {
		if !used[id] {
			delete(h.groups, id)
			h.emitLocked(host.Event{Kind: host.GroupRemoved, WindowID: g.WindowID, GroupID: id})
		}
	}
}

func (h *Host) emitLocked(ev host.Event) {
	select {
	case h.events <- ev:
	default:
	}
}

func sortGroups(gs []types.Group) {
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].Position < gs[j].Position })
}
