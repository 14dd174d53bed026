package export

import (
	"time"

	"github.com/lotas/sidestack/internal/types"
	"github.com/lotas/sidestack/internal/viewmodel"
)

var exportedAt = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// sampleItems is a window with a pinned tab, one group and two loose tabs.
func sampleItems() []viewmodel.Item {
	none := types.GroupIDNone
	return viewmodel.Build(viewmodel.Input{
		Tabs: []types.Tab{
			{ID: 1, Index: 0, Title: "Inbox", URL: "https://mail.example.com", Pinned: true, GroupID: none},
			{ID: 2, Index: 1, Title: "Go docs", URL: "https://go.dev/doc", GroupID: 10, Active: true},
			{ID: 3, Index: 2, Title: "Bubble Tea", URL: "https://github.com/charmbracelet/bubbletea", GroupID: 10},
			{ID: 4, Index: 3, Title: "Example", URL: "https://example.com", Discarded: true, GroupID: none},
			{ID: 5, Index: 4, Title: "", URL: "https://untitled.example.org/x", GroupID: none},
		},
		Groups: []types.Group{{ID: 10, Title: "Research", Color: types.ColorBlue}},
	})
}
