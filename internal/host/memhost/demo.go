package memhost

import "github.com/lotas/sidestack/internal/types"

// Demo returns a host with a small, realistic window to explore the sidebar
// without a browser.
func Demo() *Host {
	h := New()
	work := h.AddGroup(types.Group{Title: "Work", Color: types.ColorBlue})
	reading := h.AddGroup(types.Group{Title: "Reading", Color: types.ColorGreen})
	h.AddGroup(types.Group{Title: "", Color: types.ColorPurple})

	h.AddTab(types.Tab{Title: "Inbox", URL: "https://mail.example.com/inbox", Pinned: true})
	h.AddTab(types.Tab{Title: "Calendar", URL: "https://calendar.example.com", Pinned: true})
	h.AddTab(types.Tab{Title: "sidestack: pull requests", URL: "https://github.com/lotas/sidestack/pulls", GroupID: work.ID, Active: true})
	h.AddTab(types.Tab{Title: "CI dashboard", URL: "https://ci.example.com/sidestack", GroupID: work.ID})
	h.AddTab(types.Tab{Title: "Design notes", URL: "https://docs.example.com/d/sidestack", GroupID: work.ID})
	h.AddTab(types.Tab{Title: "Go blog", URL: "https://go.dev/blog", GroupID: reading.ID})
	h.AddTab(types.Tab{Title: "Effective Go", URL: "https://go.dev/doc/effective_go", GroupID: reading.ID, Discarded: true})
	h.AddTab(types.Tab{Title: "Extensions", URL: "chrome://extensions"})
	h.AddTab(types.Tab{Title: "Music", URL: "https://music.example.com", Audible: true})
	h.AddTab(types.Tab{Title: "Go blog", URL: "https://go.dev/blog#top"})
	h.AddTab(types.Tab{Title: "", URL: "https://example.org/untitled"})
	h.AddTab(types.Tab{Title: "Scratch", URL: "https://scratch.example.com", GroupID: 3})
	return h
}
