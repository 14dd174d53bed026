// Package viewmodel merges host tabs and groups with local UI state into the
// ordered list of items the sidebar draws.
package viewmodel

import (
	"fmt"
	"sort"

	"github.com/lotas/sidestack/internal/search"
	"github.com/lotas/sidestack/internal/types"
)

// Kind distinguishes tab items from group items.
type Kind int

const (
	KindTab Kind = iota
	KindGroup
)

// Item is one top-level entry of the sidebar: a standalone tab or a group
// with its matching member tabs.
type Item struct {
	Kind Kind

	// KindTab
	Tab    types.Tab
	Pinned bool

	// KindGroup
	Group    types.Group
	Tabs     []types.Tab // matching members, index order
	Scores   map[int]int // member tab ID -> score
	Expanded bool

	Position int
	Score    int
}

// Key identifies the item across renders.
func (it Item) Key() string {
	if it.Kind == KindGroup {
		return fmt.Sprintf("group:%d", it.Group.ID)
	}
	return fmt.Sprintf("tab:%d", it.Tab.ID)
}

// Input is everything Build needs. Search must already be normalized.
type Input struct {
	Tabs     []types.Tab
	Groups   []types.Group
	Search   string
	Expanded map[int]bool
	Pinned   map[int]bool // tabs pinned locally but not yet confirmed by the host
}

// Build produces the ordered render list: pinned tabs by index, followed by
// groups and unpinned tabs ordered by score (desc) then position (asc). A
// group is kept when its title or any member matches the search, and scores
// the best of those. Tabs naming a group that is not in Groups are treated
// as ungrouped.
// Build does not modify its input and returns the same result for the same
// input.
func Build(in Input) []Item {
	tabs := make([]types.Tab, len(in.Tabs))
	copy(tabs, in.Tabs)
	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].Index < tabs[j].Index })

	known := make(map[int]bool, len(in.Groups))
	for _, g := range in.Groups {
		known[g.ID] = true
	}

	members := make(map[int][]types.Tab)
	var pinned, rest []Item

	for _, t := range tabs {
		if t.Grouped() {
			if known[t.GroupID] {
				members[t.GroupID] = append(members[t.GroupID], t)
				continue
			}
			// The group query raced the tab query; show the tab on its own.
			t.GroupID = types.GroupIDNone
		}
		score := search.Score(in.Search, search.Haystack(t.Title, t.URL))
		if in.Search != "" && score == 0 {
			continue
		}
		it := Item{
			Kind:     KindTab,
			Tab:      t,
			Pinned:   t.Pinned || in.Pinned[t.ID],
			Position: t.Index,
			Score:    score,
		}
		if it.Pinned {
			pinned = append(pinned, it)
		} else {
			rest = append(rest, it)
		}
	}

	for _, g := range in.Groups {
		all := members[g.ID]
		if len(all) == 0 {
			continue
		}
		titleScore := search.Score(in.Search, g.Title)
		it := Item{
			Kind:     KindGroup,
			Group:    g,
			Scores:   make(map[int]int),
			Expanded: in.Expanded[g.ID],
			Position: all[0].Index,
			Score:    titleScore,
		}
		// A matching title keeps every member; otherwise only matching
		// members are kept.
		for _, t := range all {
			score := search.Score(in.Search, search.Haystack(t.Title, t.URL))
			if in.Search != "" && score == 0 && titleScore == 0 {
				continue
			}
			it.Tabs = append(it.Tabs, t)
			it.Scores[t.ID] = score
			if score > it.Score {
				it.Score = score
			}
		}
		if len(it.Tabs) == 0 {
			continue
		}
		rest = append(rest, it)
	}

	sort.SliceStable(rest, func(i, j int) bool {
		if rest[i].Score != rest[j].Score {
			return rest[i].Score > rest[j].Score
		}
		return rest[i].Position < rest[j].Position
	})

	return append(pinned, rest...)
}

// MemberOrder returns a group item's tabs sorted for display inside the
// expanded group: score descending, then index ascending.
func MemberOrder(it Item) []types.Tab {
	out := make([]types.Tab, len(it.Tabs))
	copy(out, it.Tabs)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := it.Scores[out[i].ID], it.Scores[out[j].ID]
		if si != sj {
			return si > sj
		}
		return out[i].Index < out[j].Index
	})
	return out
}
