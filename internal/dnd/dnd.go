// Package dnd implements drag-and-drop reordering of tabs and groups.
//
// A gesture moves through Idle, Dragging and Over. Drop resolves the gesture
// against a fresh copy of the window's tabs and groups, then applies the
// move through the host.
package dnd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

// Host is the part of host.Host the engine needs.
type Host interface {
	QueryTabs(ctx context.Context, f host.Filter) ([]types.Tab, error)
	QueryGroups(ctx context.Context, f host.Filter) ([]types.Group, error)
	MoveTab(ctx context.Context, tabID, index int) error
	MoveTabs(ctx context.Context, tabIDs []int, index int) error
	GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error)
}

// SourceKind tells tab payloads from group payloads.
type SourceKind int

const (
	SourceTab SourceKind = iota
	SourceGroup
)

// Source is the dragged item.
type Source struct {
	Kind SourceKind
	ID   int
}

// Tab returns a payload for dragging a tab.
func Tab(id int) Source { return Source{Kind: SourceTab, ID: id} }

// Group returns a payload for dragging a group.
func Group(id int) Source { return Source{Kind: SourceGroup, ID: id} }

// Valid reports whether the payload names a real item.
func (s Source) Valid() bool { return s.ID > 0 }

func (s Source) String() string {
	if s.Kind == SourceGroup {
		return fmt.Sprintf("group:%d", s.ID)
	}
	return fmt.Sprintf("tab:%d", s.ID)
}

// TargetKind tells drops on a tab row from drops on a group header.
type TargetKind int

const (
	TargetTab TargetKind = iota
	TargetGroup
)

// Target is the item under the pointer. Above is true when the pointer is in
// the upper half of the row.
type Target struct {
	Kind    TargetKind
	ID      int
	GroupID int // group of a tab target, types.GroupIDNone if ungrouped
	Above   bool
}

// Phase of a gesture.
type Phase int

const (
	Idle Phase = iota
	Dragging
	Over
)

// Outcome of a drop.
type Outcome int

const (
	Ignored  Outcome = iota // malformed payload or not dragging
	Aborted                 // source or target vanished, or self-drop
	Moved
	Failed
)

// Result describes what a drop did.
type Result struct {
	Outcome  Outcome
	Strategy string // which strategy succeeded or failed last
	Err      error
}

// Engine is the drag state machine for one window. It is not safe for
// concurrent use; the caller serializes gestures.
type Engine struct {
	host     Host
	windowID int
	refresh  func(ctx context.Context)
	notify   func(string)

	phase  Phase
	source Source
	target Target
}

// New returns an idle engine. refresh is called exactly once after every
// drop that reached the host; notify receives user-facing failure notices.
// Either may be nil.
func New(h Host, windowID int, refresh func(ctx context.Context), notify func(string)) *Engine {
	if refresh == nil {
		refresh = func(context.Context) {}
	}
	if notify == nil {
		notify = func(string) {}
	}
	return &Engine{host: h, windowID: windowID, refresh: refresh, notify: notify}
}

// SetWindow changes the window the engine queries.
func (e *Engine) SetWindow(id int) { e.windowID = id }

// Phase returns the current gesture phase.
func (e *Engine) Phase() Phase { return e.phase }

// Source returns the dragged payload; meaningful when not Idle.
func (e *Engine) Source() Source { return e.source }

// Target returns the marked drop target; meaningful in Over.
func (e *Engine) Target() Target { return e.target }

// Start begins a drag. Invalid payloads leave the engine idle.
func (e *Engine) Start(src Source) bool {
	if !src.Valid() {
		e.reset()
		return false
	}
	e.phase = Dragging
	e.source = src
	e.target = Target{}
	return true
}

// Hover marks t as the drop target when it is compatible with the payload.
// A group payload never marks a tab of the dragged group, and never marks
// the dragged group itself.
func (e *Engine) Hover(t Target) bool {
	if e.phase == Idle {
		return false
	}
	if !compatible(e.source, t) {
		e.phase = Dragging
		e.target = Target{}
		return false
	}
	e.phase = Over
	e.target = t
	return true
}

// Leave clears the marked target without ending the drag.
func (e *Engine) Leave() {
	if e.phase == Over {
		e.phase = Dragging
		e.target = Target{}
	}
}

// Cancel ends the gesture without a drop.
func (e *Engine) Cancel() { e.reset() }

func (e *Engine) reset() {
	e.phase = Idle
	e.source = Source{}
	e.target = Target{}
}

func compatible(src Source, t Target) bool {
	if t.ID <= 0 {
		return false
	}
	switch src.Kind {
	case SourceTab:
		return !(t.Kind == TargetTab && t.ID == src.ID)
	case SourceGroup:
		if t.Kind == TargetGroup {
			return t.ID != src.ID
		}
		return t.GroupID != src.ID
	}
	return false
}

// Gesture is a drop taken off the engine, ready to apply.
type Gesture struct {
	Source   Source
	Target   Target
	WindowID int
}

// Drop applies the marked target and returns the engine to Idle.
func (e *Engine) Drop(ctx context.Context) Result {
	g, ok := e.Take()
	if !ok {
		return Result{Outcome: Ignored}
	}
	return e.Apply(ctx, g)
}

// Take ends the gesture and returns it when it has a marked target. The
// engine is Idle afterwards either way.
func (e *Engine) Take() (Gesture, bool) {
	g := Gesture{Source: e.source, Target: e.target, WindowID: e.windowID}
	phase := e.phase
	e.reset()
	if phase != Over || !g.Source.Valid() || g.Target.ID <= 0 {
		return Gesture{}, false
	}
	return g, true
}

// Apply performs a taken gesture against the host. It reads no gesture
// state, so it may run while a new drag starts.
func (e *Engine) Apply(ctx context.Context, g Gesture) Result {
	src, tgt := g.Source, g.Target
	if !src.Valid() || tgt.ID <= 0 {
		return Result{Outcome: Ignored}
	}

	defer e.refresh(ctx)

	f := host.Filter{WindowID: g.WindowID}
	tabs, err := e.host.QueryTabs(ctx, f)
	if err != nil {
		return e.fail("query", err)
	}
	groups, err := e.host.QueryGroups(ctx, f)
	if err != nil {
		return e.fail("query", err)
	}
	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].Index < tabs[j].Index })

	var res Result
	switch {
	case src.Kind == SourceTab && tgt.Kind == TargetTab:
		res = e.tabOnTab(ctx, tabs, src.ID, tgt)
	case src.Kind == SourceTab && tgt.Kind == TargetGroup:
		res = e.tabOnGroup(ctx, tabs, groups, src.ID, tgt.ID)
	case src.Kind == SourceGroup && tgt.Kind == TargetTab:
		res = e.groupOnTab(ctx, tabs, groups, src.ID, tgt)
	default:
		res = e.groupOnGroup(ctx, tabs, groups, src.ID, tgt)
	}
	applog.Info("dnd.drop", "source", src, "target", tgt.ID, "above", tgt.Above,
		"outcome", res.Outcome, "strategy", res.Strategy)
	return res
}

func (e *Engine) fail(strategy string, err error) Result {
	applog.Error("dnd.drop", err, "strategy", strategy)
	e.notify("Could not move: " + err.Error())
	return Result{Outcome: Failed, Strategy: strategy, Err: err}
}

// TabDropIndex is where a tab dragged from fromIndex lands when dropped on
// the tab at targetIndex. The result is clamped to [0, count-1].
func TabDropIndex(fromIndex, targetIndex int, above bool, count int) int {
	idx := targetIndex
	if !above {
		idx++
	}
	if fromIndex < idx {
		idx--
	}
	return clamp(idx, 0, count-1)
}

// BlockDropIndex is where the first tab of a block of size tabs starting at
// firstIndex lands when dropped on the tab at targetIndex. The result is
// clamped to [0, count-size].
func BlockDropIndex(firstIndex, size, targetIndex int, above bool, count int) int {
	idx := targetIndex
	if !above {
		idx++
	}
	if firstIndex < idx {
		idx -= size
	}
	return clamp(idx, 0, count-size)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) tabOnTab(ctx context.Context, tabs []types.Tab, srcID int, tgt Target) Result {
	if srcID == tgt.ID {
		return Result{Outcome: Aborted}
	}
	dragged, ok1 := host.FindTab(tabs, srcID)
	target, ok2 := host.FindTab(tabs, tgt.ID)
	if !ok1 || !ok2 {
		return Result{Outcome: Aborted}
	}
	idx := TabDropIndex(dragged.Index, target.Index, tgt.Above, len(tabs))
	if idx == dragged.Index {
		return Result{Outcome: Aborted}
	}
	if err := e.host.MoveTab(ctx, srcID, idx); err != nil {
		return e.fail("tab", err)
	}
	return Result{Outcome: Moved, Strategy: "tab"}
}

func (e *Engine) tabOnGroup(ctx context.Context, tabs []types.Tab, groups []types.Group, srcID, groupID int) Result {
	dragged, ok := host.FindTab(tabs, srcID)
	if !ok {
		return Result{Outcome: Aborted}
	}
	if _, ok := host.FindGroup(groups, groupID); !ok {
		return Result{Outcome: Aborted}
	}
	if dragged.GroupID == groupID {
		return Result{Outcome: Aborted}
	}
	if _, err := e.host.GroupTabs(ctx, []int{srcID}, groupID); err != nil {
		return e.fail("group", err)
	}
	return Result{Outcome: Moved, Strategy: "group"}
}

func (e *Engine) groupOnTab(ctx context.Context, tabs []types.Tab, groups []types.Group, groupID int, tgt Target) Result {
	if _, ok := host.FindGroup(groups, groupID); !ok {
		return Result{Outcome: Aborted}
	}
	members := host.Members(tabs, groupID)
	target, ok := host.FindTab(tabs, tgt.ID)
	if !ok || len(members) == 0 || target.GroupID == groupID {
		return Result{Outcome: Aborted}
	}
	idx := BlockDropIndex(members[0].Index, len(members), target.Index, tgt.Above, len(tabs))
	if idx == members[0].Index {
		return Result{Outcome: Aborted}
	}
	if err := e.host.MoveTabs(ctx, tabIDs(members), idx); err != nil {
		return e.fail("block", err)
	}
	return Result{Outcome: Moved, Strategy: "block"}
}

// GroupDropSlot is the index, among the tabs left after removing the dragged
// group, where the dragged group's first tab should land to sit directly
// above or below the target group. It is also the final index of that tab.
func GroupDropSlot(tabs []types.Tab, draggedID, targetID int, above bool) (int, bool) {
	var rest []types.Tab
	for _, t := range tabs {
		if t.GroupID != draggedID {
			rest = append(rest, t)
		}
	}
	first, last := -1, -1
	for i, t := range rest {
		if t.GroupID == targetID {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return 0, false
	}
	if above {
		return first, true
	}
	return last + 1, true
}

func (e *Engine) groupOnGroup(ctx context.Context, tabs []types.Tab, groups []types.Group, draggedID int, tgt Target) Result {
	if draggedID == tgt.ID {
		return Result{Outcome: Aborted}
	}
	if _, ok := host.FindGroup(groups, draggedID); !ok {
		return Result{Outcome: Aborted}
	}
	if _, ok := host.FindGroup(groups, tgt.ID); !ok {
		return Result{Outcome: Aborted}
	}
	members := host.Members(tabs, draggedID)
	if len(members) == 0 {
		return Result{Outcome: Aborted}
	}
	slot, ok := GroupDropSlot(tabs, draggedID, tgt.ID, tgt.Above)
	if !ok {
		return Result{Outcome: Aborted}
	}
	if slot == members[0].Index {
		return Result{Outcome: Aborted}
	}
	applog.Info("dnd.group_move", "group", draggedID, "slot", slot)

	mv := groupMove{groupID: draggedID, members: members, slot: slot}
	var last error
	var name string
	for _, s := range e.strategies() {
		name = s.name
		err := s.run(ctx, mv)
		if err == nil {
			return Result{Outcome: Moved, Strategy: s.name}
		}
		applog.Error("dnd.strategy", err, "strategy", s.name, "group", draggedID)
		last = err
	}
	if last == nil {
		last = errors.New("no move strategy available")
	}
	return e.fail(name, last)
}

type groupMove struct {
	groupID int
	members []types.Tab
	slot    int
}

type strategy struct {
	name string
	run  func(ctx context.Context, mv groupMove) error
}

// strategies lists the ways to move a group, most atomic first. Each is
// tried only when the previous one failed.
func (e *Engine) strategies() []strategy {
	var out []strategy
	if gm, ok := e.host.(host.GroupMover); ok {
		out = append(out, strategy{"native", func(ctx context.Context, mv groupMove) error {
			return gm.MoveGroup(ctx, mv.groupID, mv.slot)
		}})
	}
	out = append(out,
		strategy{"block", func(ctx context.Context, mv groupMove) error {
			return e.host.MoveTabs(ctx, tabIDs(mv.members), mv.slot)
		}},
		strategy{"sequential", e.moveSequential},
	)
	return out
}

// moveSequential moves tabs one at a time so member i ends at slot+i.
// Moving right, the last member goes first so earlier members do not shift
// the slots still to be filled.
func (e *Engine) moveSequential(ctx context.Context, mv groupMove) error {
	n := len(mv.members)
	for k := 0; k < n; k++ {
		i := k
		if mv.members[0].Index < mv.slot {
			i = n - 1 - k
		}
		if err := e.host.MoveTab(ctx, mv.members[i].ID, mv.slot+i); err != nil {
			return fmt.Errorf("move tab %d: %w", mv.members[i].ID, err)
		}
	}
	return nil
}

func tabIDs(tabs []types.Tab) []int {
	ids := make([]int, len(tabs))
	for i, t := range tabs {
		ids[i] = t.ID
	}
	return ids
}
