// Package menu is the table of context-menu operations shared by tab and
// group menus.
package menu

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/gobwas/glob"

	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/state"
	"github.com/lotas/sidestack/internal/types"
)

// ErrDisabled is returned when a disabled option is run.
var ErrDisabled = errors.New("menu option is disabled")

// Clipboard receives copied text.
type Clipboard interface {
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// SystemClipboard writes to the desktop clipboard.
var SystemClipboard Clipboard = systemClipboard{}

// Env is what operations act on. State, Clipboard and DB may be nil; the
// operations that need them then fail or are disabled.
type Env struct {
	Host      host.Host
	WindowID  int
	State     *state.Manager
	Clipboard Clipboard
	DB        *sql.DB
	Ignore    []glob.Glob
}

// TabContext is the tab a menu was opened on.
type TabContext struct {
	Tab       types.Tab
	Suspended bool // discarded by the host or suspended by the sidebar
	Duplicate bool // another tab in the window has the same URL
}

// Operation is one entry of the table.
type Operation interface {
	Key() string
	Label(tc TabContext) string
	// Disabled reports whether the option is shown but cannot be run.
	Disabled(tc TabContext) bool
	// TabsOnly hides the operation from group menus.
	TabsOnly() bool
	Apply(ctx context.Context, env Env, tc TabContext) error
}

// GroupOperation is an Operation that can also act on a whole group.
type GroupOperation interface {
	Operation
	// GroupLabel names the group action; members are the group's tabs at
	// the time the menu is built.
	GroupLabel(g types.Group, members []types.Tab) string
	ApplyGroup(ctx context.Context, env Env, g types.Group) error
}

// Option is a built menu entry.
type Option struct {
	Key      string
	Label    string
	Disabled bool
	run      func(ctx context.Context) error
}

// Run performs the option. Disabled options return ErrDisabled.
func (o Option) Run(ctx context.Context) error {
	if o.Disabled {
		return ErrDisabled
	}
	if o.run == nil {
		return nil
	}
	return o.run(ctx)
}

// Table lists every operation.
func Table() []Operation {
	return []Operation{
		pinOp{},
		suspendOp{},
		activateOp{},
		closeOp{},
		copyOp{key: "copyTitle", label: "Copy Title", text: func(t types.Tab) string { return t.Title }},
		copyOp{key: "copyUrl", label: "Copy URL", text: func(t types.Tab) string { return t.URL }},
		duplicateOp{},
		moveToWindowOp{},
		reloadOp{},
		groupByDomainOp{},
		closeDuplicatesOp{},
	}
}

// TabOptions builds the menu for a tab, sorted by label.
func TabOptions(env Env, tc TabContext) []Option {
	var opts []Option
	for _, op := range Table() {
		opts = append(opts, Option{
			Key:      op.Key(),
			Label:    op.Label(tc),
			Disabled: op.Disabled(tc),
			run:      func(ctx context.Context) error { return op.Apply(ctx, env, tc) },
		})
	}
	sortOptions(opts)
	return opts
}

// GroupOptions builds the menu for a group: expand/collapse, ungroup and
// save, plus every operation with a group handler, sorted by label. members
// are the group's current tabs and only shape the labels.
func GroupOptions(env Env, g types.Group, members []types.Tab) []Option {
	toggle := "Collapse Group"
	if g.Collapsed {
		toggle = "Expand Group"
	}
	opts := []Option{
		{
			Key:   "toggle",
			Label: toggle,
			run: func(ctx context.Context) error {
				collapsed := !g.Collapsed
				return env.Host.UpdateGroup(ctx, g.ID, host.GroupUpdate{Collapsed: &collapsed})
			},
		},
		{
			Key:   "ungroup",
			Label: "Ungroup Tabs",
			run: func(ctx context.Context) error {
				tabs, err := groupTabs(ctx, env, g)
				if err != nil {
					return err
				}
				return env.Host.UngroupTabs(ctx, tabIDs(tabs))
			},
		},
		{
			Key:      "save",
			Label:    "Save Group",
			Disabled: env.DB == nil,
			run: func(ctx context.Context) error {
				return saveGroup(ctx, env, g)
			},
		},
	}
	for _, op := range Table() {
		gop, ok := op.(GroupOperation)
		if !ok || op.TabsOnly() {
			continue
		}
		opts = append(opts, Option{
			Key:   gop.Key(),
			Label: gop.GroupLabel(g, members),
			run:   func(ctx context.Context) error { return gop.ApplyGroup(ctx, env, g) },
		})
	}
	sortOptions(opts)
	return opts
}

func sortOptions(opts []Option) {
	sort.SliceStable(opts, func(i, j int) bool {
		return strings.ToLower(opts[i].Label) < strings.ToLower(opts[j].Label)
	})
}

// groupTabs queries the group's current members.
func groupTabs(ctx context.Context, env Env, g types.Group) ([]types.Tab, error) {
	tabs, err := env.Host.QueryTabs(ctx, host.Filter{GroupID: g.ID})
	if err != nil {
		return nil, fmt.Errorf("query group %d: %w", g.ID, err)
	}
	return host.Members(tabs, g.ID), nil
}

// eachTab applies fn to every tab and joins the failures.
func eachTab(tabs []types.Tab, fn func(t types.Tab) error) error {
	var errs []error
	for _, t := range tabs {
		if err := fn(t); err != nil {
			errs = append(errs, fmt.Errorf("tab %d: %w", t.ID, err))
		}
	}
	return errors.Join(errs...)
}

func tabIDs(tabs []types.Tab) []int {
	ids := make([]int, len(tabs))
	for i, t := range tabs {
		ids[i] = t.ID
	}
	return ids
}
