// Package snapshot saves tab groups to the database and reopens them later.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/storage"
	"github.com/lotas/sidestack/internal/types"
)

// SaveGroup stores a live group's title, color and tab URLs. When the newest
// saved group with the same title has exactly the same URLs, nothing is
// written and its ID is returned with created=false.
func SaveGroup(ctx context.Context, h host.Host, db *sql.DB, groupID int) (id string, created bool, err error) {
	groups, err := h.QueryGroups(ctx, host.Filter{GroupID: groupID})
	if err != nil {
		return "", false, fmt.Errorf("query group: %w", err)
	}
	g, ok := host.FindGroup(groups, groupID)
	if !ok {
		return "", false, fmt.Errorf("group %d: %w", groupID, host.ErrNotFound)
	}
	tabs, err := h.QueryTabs(ctx, host.Filter{WindowID: g.WindowID, GroupID: groupID})
	if err != nil {
		return "", false, fmt.Errorf("query tabs: %w", err)
	}
	members := host.Members(tabs, groupID)
	if len(members) == 0 {
		return "", false, fmt.Errorf("group %d has no tabs", groupID)
	}

	// Check the newest save of the same group for changes.
	list, err := storage.ListSavedGroups(db)
	if err != nil {
		return "", false, fmt.Errorf("list saved groups: %w", err)
	}
	for _, s := range list {
		if s.Title != g.Title {
			continue
		}
		prev, err := storage.GetSavedGroup(db, s.ID)
		if err != nil {
			return "", false, err
		}
		if sameURLs(prev.Tabs, members) {
			applog.Info("saved.skipped", "id", prev.ID, "title", g.Title)
			return prev.ID, false, nil
		}
		break
	}

	saved := storage.SavedGroup{
		SavedGroupSummary: storage.SavedGroupSummary{
			ID:    uuid.NewString(),
			Title: g.Title,
			Color: string(g.Color),
		},
	}
	for _, t := range members {
		saved.Tabs = append(saved.Tabs, storage.SavedTab{URL: t.URL, Title: t.Title, Pinned: t.Pinned})
	}
	if err := storage.CreateSavedGroup(db, saved); err != nil {
		return "", false, err
	}
	applog.Info("saved.created", "id", saved.ID, "title", g.Title, "tabs", len(saved.Tabs))
	return saved.ID, true, nil
}

func sameURLs(saved []storage.SavedTab, live []types.Tab) bool {
	a := make(map[string]bool, len(saved))
	for _, t := range saved {
		a[t.URL] = true
	}
	b := make(map[string]bool, len(live))
	for _, t := range live {
		b[t.URL] = true
	}
	if len(a) != len(b) {
		return false
	}
	for u := range b {
		if !a[u] {
			return false
		}
	}
	return true
}

// Restore opens the tabs of a saved group in windowID, groups them and
// applies the saved title and color. It returns the new group's ID.
func Restore(ctx context.Context, h host.Host, db *sql.DB, windowID int, id string) (int, error) {
	saved, err := storage.GetSavedGroup(db, id)
	if err != nil {
		return 0, err
	}
	if len(saved.Tabs) == 0 {
		return 0, fmt.Errorf("saved group %s has no tabs", saved.ID)
	}
	applog.Info("saved.restore.start", "id", saved.ID, "window", windowID)

	var opened []int
	for _, t := range saved.Tabs {
		tab, err := h.CreateTab(ctx, host.CreateTab{URL: t.URL, WindowID: windowID})
		if err != nil {
			return 0, fmt.Errorf("open %s: %w", t.URL, err)
		}
		opened = append(opened, tab.ID)
	}

	gid, err := h.GroupTabs(ctx, opened, 0)
	if err != nil {
		return 0, fmt.Errorf("group restored tabs: %w", err)
	}
	title := saved.Title
	color := types.Color(saved.Color)
	u := host.GroupUpdate{Title: &title}
	if color.Valid() {
		u.Color = &color
	}
	if err := h.UpdateGroup(ctx, gid, u); err != nil {
		return gid, fmt.Errorf("label restored group: %w", err)
	}

	applog.Info("saved.restore.done", "id", saved.ID, "group", gid, "tabs", len(opened))
	return gid, nil
}
