package tabops

import (
	"context"
	"fmt"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/state"
)

// Suspend discards a tab and remembers its title, URL and favicon so the
// sidebar can still draw it. The record is written only after the host
// accepted the discard.
func Suspend(ctx context.Context, h host.Host, m *state.Manager, tabID int) error {
	tabs, err := h.QueryTabs(ctx, host.Filter{})
	if err != nil {
		return fmt.Errorf("query tabs: %w", err)
	}
	tab, ok := host.FindTab(tabs, tabID)
	if !ok {
		return fmt.Errorf("tab %d: %w", tabID, host.ErrNotFound)
	}
	if err := h.DiscardTab(ctx, tabID); err != nil {
		return fmt.Errorf("discard tab %d: %w", tabID, err)
	}
	if m == nil {
		return nil
	}
	if _, err := m.UpsertSuspended(ctx, state.SuspendedTab{
		ID:         tab.ID,
		URL:        tab.URL,
		Title:      tab.Title,
		FavIconURL: tab.FavIconURL,
		WindowID:   tab.WindowID,
		Index:      tab.Index,
	}); err != nil {
		return fmt.Errorf("record suspended tab %d: %w", tabID, err)
	}
	applog.Info("tabops.suspend", "tab", tabID)
	return nil
}

// Restore reloads a suspended tab and forgets its record.
func Restore(ctx context.Context, h host.Host, m *state.Manager, tabID int) error {
	if err := h.ReloadTab(ctx, tabID); err != nil {
		return fmt.Errorf("reload tab %d: %w", tabID, err)
	}
	if m == nil {
		return nil
	}
	if _, err := m.RemoveSuspended(ctx, tabID); err != nil {
		return fmt.Errorf("forget suspended tab %d: %w", tabID, err)
	}
	applog.Info("tabops.restore", "tab", tabID)
	return nil
}
