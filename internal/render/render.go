// Package render turns view-model items and the sidebar overlays into a flat
// list of rows. Drawing the rows is left to the terminal UI.
package render

import (
	"sort"
	"time"

	"github.com/lotas/sidestack/internal/viewmodel"
)

// StaggerStep is the per-row animation delay for a freshly expanded group.
const StaggerStep = 50 * time.Millisecond

// RowKind identifies what a row shows.
type RowKind int

const (
	RowNewTab RowKind = iota
	RowSeparator
	RowTab
	RowGroup
	RowGroupTab
)

// Row is one line of the sidebar.
type Row struct {
	Kind RowKind

	TabID   int
	GroupID int // RowGroup and RowGroupTab

	Title string
	Icon  Icon

	// Tab rows
	Active    bool
	Audible   bool
	Pinned    bool
	Suspended bool
	Duplicate bool

	// Group rows
	Color    string // hex
	Count    int
	Expanded bool

	// Member rows of a group that was expanded since the previous render.
	Animate bool
	Delay   time.Duration
}

// Selectable reports whether the cursor may rest on the row.
func (r Row) Selectable() bool {
	return r.Kind != RowSeparator
}

// Frame is a complete rendering of the sidebar.
type Frame struct {
	Rows  []Row
	Theme Theme
	Empty bool // no item matched
}

// Suspended is what the sidebar remembers about a tab it suspended.
type Suspended struct {
	Title      string
	URL        string
	FavIconURL string
}

// Overlay holds the locally tracked state drawn on top of host data.
type Overlay struct {
	Suspended  map[int]Suspended
	Duplicates map[int]bool
	Theme      Theme
}

// Engine owns the expand/collapse state of groups across renders.
type Engine struct {
	expanded     map[int]bool
	justExpanded map[int]bool
}

// NewEngine returns an Engine with every group collapsed.
func NewEngine() *Engine {
	return &Engine{
		expanded:     make(map[int]bool),
		justExpanded: make(map[int]bool),
	}
}

// Toggle flips a group between expanded and collapsed. Expanding also marks
// the group as just expanded until the next Render.
func (e *Engine) Toggle(groupID int) {
	if e.expanded[groupID] {
		delete(e.expanded, groupID)
		delete(e.justExpanded, groupID)
		return
	}
	e.expanded[groupID] = true
	e.justExpanded[groupID] = true
}

// IsExpanded reports whether the group is expanded.
func (e *Engine) IsExpanded(groupID int) bool {
	return e.expanded[groupID]
}

// Expanded returns a copy of the expanded group set.
func (e *Engine) Expanded() map[int]bool {
	out := make(map[int]bool, len(e.expanded))
	for id := range e.expanded {
		out[id] = true
	}
	return out
}

// ExpandedIDs returns the expanded group IDs in ascending order.
func (e *Engine) ExpandedIDs() []int {
	ids := make([]int, 0, len(e.expanded))
	for id := range e.expanded {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Render lays out items as rows. The just-expanded set is consumed.
func (e *Engine) Render(items []viewmodel.Item, ov Overlay) Frame {
	f := Frame{Theme: ov.Theme, Empty: len(items) == 0}

	hasPinned := false
	for _, it := range items {
		if it.Kind == viewmodel.KindTab && it.Pinned {
			hasPinned = true
			break
		}
	}
	if !hasPinned {
		f.Rows = append(f.Rows, Row{Kind: RowNewTab, Title: "New Tab"})
	}

	separated := false
	for _, it := range items {
		pinned := it.Kind == viewmodel.KindTab && it.Pinned
		if !pinned && hasPinned && !separated {
			f.Rows = append(f.Rows, Row{Kind: RowSeparator}, Row{Kind: RowNewTab, Title: "New Tab"})
			separated = true
		}

		if it.Kind == viewmodel.KindTab {
			row := tabRow(it, ov)
			row.Kind = RowTab
			row.Pinned = pinned
			f.Rows = append(f.Rows, row)
			continue
		}

		expanded := e.expanded[it.Group.ID]
		f.Rows = append(f.Rows, Row{
			Kind:     RowGroup,
			GroupID:  it.Group.ID,
			Title:    GroupTitle(it.Group.Title),
			Color:    it.Group.Color.Hex(),
			Count:    len(it.Tabs),
			Expanded: expanded,
		})
		if !expanded {
			continue
		}
		animate := e.justExpanded[it.Group.ID]
		for i, t := range viewmodel.MemberOrder(it) {
			row := tabRow(viewmodel.Item{Kind: viewmodel.KindTab, Tab: t}, ov)
			row.Kind = RowGroupTab
			row.GroupID = it.Group.ID
			row.Pinned = t.Pinned
			if animate {
				row.Animate = true
				row.Delay = time.Duration(i) * StaggerStep
			}
			f.Rows = append(f.Rows, row)
		}
	}

	e.justExpanded = make(map[int]bool)
	return f
}

func tabRow(it viewmodel.Item, ov Overlay) Row {
	t := it.Tab
	rec, tracked := ov.Suspended[t.ID]

	title := t.Title
	url := t.URL
	if tracked && rec.Title != "" {
		title = rec.Title
	}
	if tracked && rec.URL != "" {
		url = rec.URL
	}
	favicon := t.FavIconURL
	if favicon == "" && tracked {
		favicon = rec.FavIconURL
	}

	return Row{
		TabID:     t.ID,
		Title:     TabTitle(title, url),
		Icon:      Favicon(favicon, t.URL),
		Active:    t.Active,
		Audible:   t.Audible,
		Suspended: tracked || t.Discarded,
		Duplicate: ov.Duplicates[t.ID],
	}
}

// TabTitle falls back from title to URL to "Untitled".
func TabTitle(title, url string) string {
	if title != "" {
		return title
	}
	if url != "" {
		return url
	}
	return "Untitled"
}

// GroupTitle is the display name of a group.
func GroupTitle(title string) string {
	if title == "" {
		return "Untitled Group"
	}
	return title
}
