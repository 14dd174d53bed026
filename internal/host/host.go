// Package host defines the contract between the sidebar and the browser that
// owns the tabs. Every mutation the sidebar makes goes through a Host.
package host

import (
	"context"
	"errors"
	"sort"

	"github.com/lotas/sidestack/internal/types"
)

var (
	// ErrUnsupported is wrapped by hosts that cannot perform an operation.
	ErrUnsupported = errors.New("operation not supported by host")
	// ErrNotFound is wrapped when a tab, group or window does not exist.
	ErrNotFound = errors.New("not found")
)

// Filter narrows tab and group queries. Zero fields match everything.
type Filter struct {
	WindowID int
	GroupID  int
}

// TabUpdate changes tab properties. Nil fields are left alone.
type TabUpdate struct {
	Pinned *bool
	Active *bool
}

// GroupUpdate changes group properties. Nil fields are left alone.
type GroupUpdate struct {
	Title     *string
	Color     *types.Color
	Collapsed *bool
}

// CreateTab describes a tab to open. A zero WindowID means the current window.
type CreateTab struct {
	URL      string
	WindowID int
	Pinned   bool
	Active   bool
}

// Host is a browser that owns tabs and tab groups.
type Host interface {
	CurrentWindow(ctx context.Context) (int, error)
	QueryTabs(ctx context.Context, f Filter) ([]types.Tab, error)
	QueryGroups(ctx context.Context, f Filter) ([]types.Group, error)

	// MoveTab places a tab at index within its window. -1 appends.
	MoveTab(ctx context.Context, tabID, index int) error
	// MoveTabs places the tabs as a contiguous block whose first tab ends up
	// at index.
	MoveTabs(ctx context.Context, tabIDs []int, index int) error
	MoveTabToWindow(ctx context.Context, tabID, windowID int) error

	// GroupTabs adds tabs to groupID, or to a new group when groupID is 0,
	// and returns the group's ID.
	GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error)
	UngroupTabs(ctx context.Context, tabIDs []int) error
	UpdateGroup(ctx context.Context, groupID int, u GroupUpdate) error

	DiscardTab(ctx context.Context, tabID int) error
	ReloadTab(ctx context.Context, tabID int) error
	RemoveTab(ctx context.Context, tabID int) error
	DuplicateTab(ctx context.Context, tabID int) (types.Tab, error)
	UpdateTab(ctx context.Context, tabID int, u TabUpdate) error
	CreateTab(ctx context.Context, c CreateTab) (types.Tab, error)
	// CreateWindow opens a new window holding tabID and returns its ID.
	CreateWindow(ctx context.Context, tabID int) (int, error)

	// Events delivers change notifications. The channel may be nil for hosts
	// that never change.
	Events() <-chan Event
}

// GroupMover is implemented by hosts that can move a whole group in one
// call. index is the tab index the group's first tab ends up at.
type GroupMover interface {
	MoveGroup(ctx context.Context, groupID, index int) error
}

// EventKind names a host change notification.
type EventKind string

const (
	TabCreated   EventKind = "tab.created"
	TabUpdated   EventKind = "tab.updated"
	TabRemoved   EventKind = "tab.removed"
	TabActivated EventKind = "tab.activated"
	TabMoved     EventKind = "tab.moved"
	GroupCreated EventKind = "group.created"
	GroupUpdated EventKind = "group.updated"
	GroupRemoved EventKind = "group.removed"
	GroupMoved   EventKind = "group.moved"
)

// Event is a change in the host. WindowID is 0 when the host cannot tell.
type Event struct {
	Kind     EventKind
	WindowID int
	TabID    int
	GroupID  int
}

// Concerns reports whether an event may change the given window's view.
func (e Event) Concerns(windowID int) bool {
	return e.WindowID == 0 || windowID == 0 || e.WindowID == windowID
}

// SortTabs orders tabs by window then index.
func SortTabs(tabs []types.Tab) {
	sort.SliceStable(tabs, func(i, j int) bool {
		if tabs[i].WindowID != tabs[j].WindowID {
			return tabs[i].WindowID < tabs[j].WindowID
		}
		return tabs[i].Index < tabs[j].Index
	})
}

// FindTab returns the tab with the given ID.
func FindTab(tabs []types.Tab, id int) (types.Tab, bool) {
	for _, t := range tabs {
		if t.ID == id {
			return t, true
		}
	}
	return types.Tab{}, false
}

// FindGroup returns the group with the given ID.
func FindGroup(groups []types.Group, id int) (types.Group, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return types.Group{}, false
}

// Members returns the tabs of a group in index order.
func Members(tabs []types.Tab, groupID int) []types.Tab {
	var out []types.Tab
	for _, t := range tabs {
		if t.GroupID == groupID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Bool returns a pointer to b, for building updates.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s, for building updates.
func String(s string) *string { return &s }

// AssignPositions sets each group's Position to its rank by the index of its
// first member tab. Groups without members go last, in input order.
func AssignPositions(groups []types.Group, tabs []types.Tab) {
	first := make(map[int]int)
	for _, t := range tabs {
		if !t.Grouped() {
			continue
		}
		if idx, ok := first[t.GroupID]; !ok || t.Index < idx {
			first[t.GroupID] = t.Index
		}
	}
	order := make([]int, len(groups))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, oka := first[groups[order[a]].ID]
		ib, okb := first[groups[order[b]].ID]
		if oka != okb {
			return oka
		}
		return ia < ib
	})
	for rank, i := range order {
		groups[i].Position = rank
	}
}
