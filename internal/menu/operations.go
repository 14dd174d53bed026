package menu

import (
	"context"
	"errors"
	"fmt"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/snapshot"
	"github.com/lotas/sidestack/internal/tabops"
	"github.com/lotas/sidestack/internal/types"
)

type pinOp struct{}

func (pinOp) Key() string { return "pin" }

func (pinOp) Label(tc TabContext) string {
	if tc.Tab.Pinned {
		return "Unpin"
	}
	return "Pin"
}

func (pinOp) Disabled(TabContext) bool { return false }
func (pinOp) TabsOnly() bool           { return false }

func (pinOp) Apply(ctx context.Context, env Env, tc TabContext) error {
	pinned := !tc.Tab.Pinned
	return env.Host.UpdateTab(ctx, tc.Tab.ID, host.TabUpdate{Pinned: &pinned})
}

func (pinOp) GroupLabel(_ types.Group, members []types.Tab) string {
	if allPinned(members) {
		return "Unpin All Tabs"
	}
	return "Pin All Tabs"
}

// ApplyGroup pins every member, or unpins them all when all are pinned.
func (pinOp) ApplyGroup(ctx context.Context, env Env, g types.Group) error {
	tabs, err := groupTabs(ctx, env, g)
	if err != nil {
		return err
	}
	pin := !allPinned(tabs)
	return eachTab(tabs, func(t types.Tab) error {
		return env.Host.UpdateTab(ctx, t.ID, host.TabUpdate{Pinned: &pin})
	})
}

func allPinned(tabs []types.Tab) bool {
	for _, t := range tabs {
		if !t.Pinned {
			return false
		}
	}
	return len(tabs) > 0
}

type suspendOp struct{}

func (suspendOp) Key() string { return "suspend" }

func (suspendOp) Label(tc TabContext) string {
	if tc.Suspended {
		return "Restore"
	}
	return "Suspend"
}

// Disabled: the host refuses to discard the active tab.
func (suspendOp) Disabled(tc TabContext) bool { return !tc.Suspended && tc.Tab.Active }
func (suspendOp) TabsOnly() bool              { return false }

func (suspendOp) Apply(ctx context.Context, env Env, tc TabContext) error {
	if tc.Suspended {
		return tabops.Restore(ctx, env.Host, env.State, tc.Tab.ID)
	}
	return tabops.Suspend(ctx, env.Host, env.State, tc.Tab.ID)
}

func (suspendOp) GroupLabel(types.Group, []types.Tab) string { return "Suspend All Tabs" }

func (suspendOp) ApplyGroup(ctx context.Context, env Env, g types.Group) error {
	tabs, err := groupTabs(ctx, env, g)
	if err != nil {
		return err
	}
	var idle []types.Tab
	for _, t := range tabs {
		if !t.Active && !t.Discarded {
			idle = append(idle, t)
		}
	}
	return eachTab(idle, func(t types.Tab) error {
		return tabops.Suspend(ctx, env.Host, env.State, t.ID)
	})
}

type activateOp struct{}

func (activateOp) Key() string                 { return "activate" }
func (activateOp) Label(TabContext) string     { return "Activate" }
func (activateOp) Disabled(tc TabContext) bool { return tc.Tab.Active }
func (activateOp) TabsOnly() bool              { return true }

func (activateOp) Apply(ctx context.Context, env Env, tc TabContext) error {
	active := true
	if err := env.Host.UpdateTab(ctx, tc.Tab.ID, host.TabUpdate{Active: &active}); err != nil {
		return err
	}
	if tc.Suspended && env.State != nil {
		if _, err := env.State.RemoveSuspended(ctx, tc.Tab.ID); err != nil {
			return fmt.Errorf("forget suspended tab %d: %w", tc.Tab.ID, err)
		}
	}
	return nil
}

type closeOp struct{}

func (closeOp) Key() string              { return "close" }
func (closeOp) Label(TabContext) string  { return "Close Tab" }
func (closeOp) Disabled(TabContext) bool { return false }
func (closeOp) TabsOnly() bool           { return false }

func (closeOp) Apply(ctx context.Context, env Env, tc TabContext) error {
	return env.Host.RemoveTab(ctx, tc.Tab.ID)
}

func (closeOp) GroupLabel(types.Group, []types.Tab) string { return "Close All Tabs" }

func (closeOp) ApplyGroup(ctx context.Context, env Env, g types.Group) error {
	tabs, err := groupTabs(ctx, env, g)
	if err != nil {
		return err
	}
	return eachTab(tabs, func(t types.Tab) error { return env.Host.RemoveTab(ctx, t.ID) })
}

type copyOp struct {
	key   string
	label string
	text  func(types.Tab) string
}

func (o copyOp) Key() string             { return o.key }
func (o copyOp) Label(TabContext) string { return o.label }
func (copyOp) Disabled(TabContext) bool  { return false }
func (copyOp) TabsOnly() bool            { return true }

func (o copyOp) Apply(_ context.Context, env Env, tc TabContext) error {
	if env.Clipboard == nil {
		return errors.New("no clipboard available")
	}
	if err := env.Clipboard.WriteAll(o.text(tc.Tab)); err != nil {
		applog.Error("menu.clipboard", err, "op", o.key)
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

type duplicateOp struct{}

func (duplicateOp) Key() string              { return "duplicate" }
func (duplicateOp) Label(TabContext) string  { return "Duplicate" }
func (duplicateOp) Disabled(TabContext) bool { return false }
func (duplicateOp) TabsOnly() bool           { return false }

func (duplicateOp) Apply(ctx context.Context, env Env, tc TabContext) error {
	_, err := env.Host.DuplicateTab(ctx, tc.Tab.ID)
	return err
}

func (duplicateOp) GroupLabel(types.Group, []types.Tab) string { return "Duplicate All Tabs" }

func (duplicateOp) ApplyGroup(ctx context.Context, env Env, g types.Group) error {
	tabs, err := groupTabs(ctx, env, g)
	if err != nil {
		return err
	}
	return eachTab(tabs, func(t types.Tab) error {
		_, err := env.Host.DuplicateTab(ctx, t.ID)
		return err
	})
}

type moveToWindowOp struct{}

func (moveToWindowOp) Key() string              { return "moveToNewWindow" }
func (moveToWindowOp) Label(TabContext) string  { return "Move to New Window" }
func (moveToWindowOp) Disabled(TabContext) bool { return false }
func (moveToWindowOp) TabsOnly() bool           { return false }

func (moveToWindowOp) Apply(ctx context.Context, env Env, tc TabContext) error {
	_, err := env.Host.CreateWindow(ctx, tc.Tab.ID)
	return err
}

func (moveToWindowOp) GroupLabel(types.Group, []types.Tab) string { return "Move Group to New Window" }

// ApplyGroup opens a window with the first member and moves the rest there.
func (moveToWindowOp) ApplyGroup(ctx context.Context, env Env, g types.Group) error {
	tabs, err := groupTabs(ctx, env, g)
	if err != nil || len(tabs) == 0 {
		return err
	}
	wid, err := env.Host.CreateWindow(ctx, tabs[0].ID)
	if err != nil {
		return err
	}
	return eachTab(tabs[1:], func(t types.Tab) error {
		return env.Host.MoveTabToWindow(ctx, t.ID, wid)
	})
}

type reloadOp struct{}

func (reloadOp) Key() string              { return "reload" }
func (reloadOp) Label(TabContext) string  { return "Reload" }
func (reloadOp) Disabled(TabContext) bool { return false }
func (reloadOp) TabsOnly() bool           { return false }

func (reloadOp) Apply(ctx context.Context, env Env, tc TabContext) error {
	return env.Host.ReloadTab(ctx, tc.Tab.ID)
}

func (reloadOp) GroupLabel(types.Group, []types.Tab) string { return "Reload All Tabs" }

func (reloadOp) ApplyGroup(ctx context.Context, env Env, g types.Group) error {
	tabs, err := groupTabs(ctx, env, g)
	if err != nil {
		return err
	}
	return eachTab(tabs, func(t types.Tab) error { return env.Host.ReloadTab(ctx, t.ID) })
}

type groupByDomainOp struct{}

func (groupByDomainOp) Key() string              { return "groupByDomain" }
func (groupByDomainOp) Label(TabContext) string  { return "Group Tabs by Domain" }
func (groupByDomainOp) Disabled(TabContext) bool { return false }
func (groupByDomainOp) TabsOnly() bool           { return true }

func (groupByDomainOp) Apply(ctx context.Context, env Env, _ TabContext) error {
	_, err := tabops.GroupByDomain(ctx, env.Host, env.WindowID, env.Ignore)
	return err
}

type closeDuplicatesOp struct{}

func (closeDuplicatesOp) Key() string                 { return "closeDuplicates" }
func (closeDuplicatesOp) Label(TabContext) string     { return "Close Duplicates" }
func (closeDuplicatesOp) Disabled(tc TabContext) bool { return !tc.Duplicate }
func (closeDuplicatesOp) TabsOnly() bool              { return true }

func (closeDuplicatesOp) Apply(ctx context.Context, env Env, _ TabContext) error {
	_, err := tabops.CloseDuplicates(ctx, env.Host, env.WindowID)
	return err
}

func saveGroup(ctx context.Context, env Env, g types.Group) error {
	if env.DB == nil {
		return errors.New("no database configured")
	}
	_, _, err := snapshot.SaveGroup(ctx, env.Host, env.DB, g.ID)
	return err
}
