package viewmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotas/sidestack/internal/search"
	"github.com/lotas/sidestack/internal/types"
)

func scenario() Input {
	return Input{
		Tabs: []types.Tab{
			{ID: 1, Index: 0, Pinned: true, Title: "A", URL: "https://a.example", GroupID: types.GroupIDNone},
			{ID: 2, Index: 1, Title: "B", URL: "https://b.example", GroupID: 10},
			{ID: 3, Index: 2, Title: "C", URL: "https://c.example", GroupID: 10},
		},
		Groups:   []types.Group{{ID: 10, Title: "G", Color: types.ColorBlue}},
		Expanded: map[int]bool{10: true},
	}
}

func ids(tabs []types.Tab) []int {
	var out []int
	for _, t := range tabs {
		out = append(out, t.ID)
	}
	return out
}

func TestBuildScenarioNoSearch(t *testing.T) {
	items := Build(scenario())
	require.Len(t, items, 2)

	assert.Equal(t, KindTab, items[0].Kind)
	assert.Equal(t, 1, items[0].Tab.ID)
	assert.True(t, items[0].Pinned)

	assert.Equal(t, KindGroup, items[1].Kind)
	assert.Equal(t, 10, items[1].Group.ID)
	assert.True(t, items[1].Expanded)
	assert.Equal(t, []int{2, 3}, ids(items[1].Tabs))
	assert.Equal(t, []int{2, 3}, ids(MemberOrder(items[1])))
	assert.Equal(t, 1, items[1].Position)
}

func TestBuildScenarioSearchC(t *testing.T) {
	in := scenario()
	in.Search = "c"
	items := Build(in)
	require.Len(t, items, 1)
	assert.Equal(t, KindGroup, items[0].Kind)
	assert.Equal(t, []int{3}, ids(items[0].Tabs))
	assert.Equal(t, 1, items[0].Score)
	// Position still counts every member, matching or not.
	assert.Equal(t, 1, items[0].Position)
}

func TestBuildIdempotent(t *testing.T) {
	in := scenario()
	in.Tabs = append(in.Tabs,
		types.Tab{ID: 4, Index: 3, Title: "docs", URL: "https://docs.example", GroupID: types.GroupIDNone},
		types.Tab{ID: 5, Index: 4, Title: "mail", URL: "https://mail.example", GroupID: types.GroupIDNone},
	)
	for _, term := range []string{"", "e", "mail", "xyz"} {
		in.Search = term
		assert.Equal(t, Build(in), Build(in), "search %q", term)
	}
}

func TestBuildDoesNotReorderInput(t *testing.T) {
	in := Input{Tabs: []types.Tab{
		{ID: 2, Index: 1, GroupID: types.GroupIDNone},
		{ID: 1, Index: 0, GroupID: types.GroupIDNone},
	}}
	Build(in)
	assert.Equal(t, 2, in.Tabs[0].ID)
}

func TestBuildOrderingInvariant(t *testing.T) {
	in := Input{
		Tabs: []types.Tab{
			{ID: 1, Index: 0, Title: "pinned later", Pinned: true, GroupID: types.GroupIDNone},
			{ID: 2, Index: 1, Title: "ab", GroupID: types.GroupIDNone},
			{ID: 3, Index: 2, Title: "abc", GroupID: 7},
			{ID: 4, Index: 3, Title: "zzz", GroupID: 7},
			{ID: 5, Index: 4, Title: "abcabc", GroupID: types.GroupIDNone},
			{ID: 6, Index: 5, Title: "pin", GroupID: types.GroupIDNone},
		},
		Groups: []types.Group{{ID: 7, Title: "seven"}},
		Pinned: map[int]bool{6: true},
	}
	for _, term := range []string{"", "a", "ab", "abc"} {
		in.Search = term
		items := Build(in)
		seenUnpinned := false
		for i, it := range items {
			isPinned := it.Kind == KindTab && it.Pinned
			if isPinned {
				assert.False(t, seenUnpinned, "pinned item after unpinned (search %q)", term)
				continue
			}
			seenUnpinned = true
			if i+1 < len(items) {
				next := items[i+1]
				if it.Score == next.Score {
					assert.Less(t, it.Position, next.Position, "search %q", term)
				} else {
					assert.Greater(t, it.Score, next.Score, "search %q", term)
				}
			}
		}
	}
}

func TestBuildPinOverlay(t *testing.T) {
	in := Input{
		Tabs: []types.Tab{
			{ID: 1, Index: 0, GroupID: types.GroupIDNone},
			{ID: 2, Index: 1, GroupID: types.GroupIDNone},
		},
		Pinned: map[int]bool{2: true},
	}
	items := Build(in)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Tab.ID)
	assert.True(t, items[0].Pinned)
}

func TestBuildSearchContainment(t *testing.T) {
	in := Input{
		Tabs: []types.Tab{
			{ID: 1, Index: 0, Title: "GitHub", URL: "https://github.com", GroupID: types.GroupIDNone},
			{ID: 2, Index: 1, Title: "Mail", URL: "https://mail.example", GroupID: types.GroupIDNone},
			{ID: 3, Index: 2, Title: "Build log", URL: "https://ci.example", GroupID: 4},
		},
		Groups: []types.Group{{ID: 4, Title: "CI"}},
	}
	for _, term := range []string{"gh", "mail", "ci", "log", "x"} {
		in.Search = term
		for _, it := range Build(in) {
			tabs := it.Tabs
			if it.Kind == KindTab {
				tabs = []types.Tab{it.Tab}
			} else if search.Score(term, it.Group.Title) > 0 {
				continue
			}
			for _, tab := range tabs {
				assert.NotZero(t, search.Score(term, search.Haystack(tab.Title, tab.URL)),
					"tab %d kept for %q", tab.ID, term)
			}
		}
	}
}

func TestBuildHidesEmptyGroups(t *testing.T) {
	in := Input{
		Tabs: []types.Tab{
			{ID: 1, Index: 0, Title: "alpha", GroupID: 1},
			{ID: 2, Index: 1, Title: "beta", GroupID: 2},
		},
		Groups: []types.Group{{ID: 1}, {ID: 2}, {ID: 3, Title: "no members"}},
		Search: "alp",
	}
	items := Build(in)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Group.ID)

	in.Search = ""
	items = Build(in)
	require.Len(t, items, 2, "group without member tabs is never shown")
}

func TestBuildMatchesGroupTitle(t *testing.T) {
	in := Input{
		Tabs: []types.Tab{
			{ID: 1, Index: 0, Title: "x", URL: "https://x.example", GroupID: 5},
			{ID: 2, Index: 1, Title: "y", URL: "https://y.example", GroupID: 5},
			{ID: 3, Index: 2, Title: "notes", URL: "https://notes.example", GroupID: types.GroupIDNone},
		},
		Groups: []types.Group{{ID: 5, Title: "Work"}},
		Search: "work",
	}
	items := Build(in)
	require.Len(t, items, 1)
	assert.Equal(t, KindGroup, items[0].Kind)
	assert.Equal(t, []int{1, 2}, ids(items[0].Tabs), "a matching title keeps every member")
	assert.Equal(t, search.Score("work", "Work"), items[0].Score)

	in.Search = "y"
	items = Build(in)
	require.Len(t, items, 1)
	assert.Equal(t, []int{2}, ids(items[0].Tabs), "without a title match only matching members remain")
}

func TestBuildTabWithUnknownGroup(t *testing.T) {
	in := Input{
		Tabs: []types.Tab{
			{ID: 1, Index: 0, Title: "kept", GroupID: 5},
			{ID: 2, Index: 1, Title: "orphan", GroupID: 6},
		},
		Groups: []types.Group{{ID: 5, Title: "Five"}},
	}
	items := Build(in)
	require.Len(t, items, 2)
	assert.Equal(t, KindGroup, items[0].Kind)
	assert.Equal(t, KindTab, items[1].Kind)
	assert.Equal(t, 2, items[1].Tab.ID)
	assert.False(t, items[1].Tab.Grouped())
	assert.Equal(t, 6, in.Tabs[1].GroupID, "input is not modified")
}

func TestMemberOrderPrefersScore(t *testing.T) {
	it := Item{
		Kind: KindGroup,
		Tabs: []types.Tab{{ID: 1, Index: 3}, {ID: 2, Index: 4}, {ID: 3, Index: 5}},
		Scores: map[int]int{1: 1, 2: 2, 3: 2},
	}
	assert.Equal(t, []int{2, 3, 1}, ids(MemberOrder(it)))
}

func TestItemKey(t *testing.T) {
	assert.Equal(t, "tab:4", Item{Kind: KindTab, Tab: types.Tab{ID: 4}}.Key())
	assert.Equal(t, "group:9", Item{Kind: KindGroup, Group: types.Group{ID: 9}}.Key())
}
