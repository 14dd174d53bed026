package firefox

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

// Host shows a Firefox profile's session file as a read-only browser.
// Firefox rewrites the file every few seconds while running, so each query
// reads it again. All mutations report host.ErrUnsupported.
type Host struct {
	profileDir string
	events     chan host.Event
}

var _ host.Host = (*Host)(nil)

// NewHost returns a host over profileDir.
func NewHost(profileDir string) *Host {
	return &Host{profileDir: profileDir, events: make(chan host.Event, 8)}
}

// Watch polls the session file and emits an event whenever it changes.
// It returns when ctx is done.
func (h *Host) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last time.Time
	for {
		if path, err := SessionPath(h.profileDir); err == nil {
			if fi, err := os.Stat(path); err == nil && !fi.ModTime().Equal(last) {
				if !last.IsZero() {
					select {
					case h.events <- host.Event{Kind: host.TabUpdated}:
					default:
					}
				}
				last = fi.ModTime()
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Host) Events() <-chan host.Event {
	return h.events
}

func (h *Host) read() (*Session, error) {
	s, err := ReadSessionFile(h.profileDir)
	if err != nil {
		applog.Warn("firefox.session", "profile", h.profileDir, "error", err)
		return nil, err
	}
	return s, nil
}

func (h *Host) CurrentWindow(ctx context.Context) (int, error) {
	s, err := h.read()
	if err != nil {
		return 0, err
	}
	return s.Current, nil
}

func (h *Host) QueryTabs(ctx context.Context, f host.Filter) ([]types.Tab, error) {
	s, err := h.read()
	if err != nil {
		return nil, err
	}
	var out []types.Tab
	for _, t := range s.Tabs {
		if f.WindowID != 0 && t.WindowID != f.WindowID {
			continue
		}
		if f.GroupID != 0 && t.GroupID != f.GroupID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (h *Host) QueryGroups(ctx context.Context, f host.Filter) ([]types.Group, error) {
	s, err := h.read()
	if err != nil {
		return nil, err
	}
	var out []types.Group
	for _, g := range s.Groups {
		if f.WindowID != 0 && g.WindowID != f.WindowID {
			continue
		}
		if f.GroupID != 0 && g.ID != f.GroupID {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

func readOnly(op string) error {
	return fmt.Errorf("%s on a session file: %w", op, host.ErrUnsupported)
}

func (h *Host) MoveTab(ctx context.Context, tabID, index int) error {
	return readOnly("move tab")
}

func (h *Host) MoveTabs(ctx context.Context, tabIDs []int, index int) error {
	return readOnly("move tabs")
}

func (h *Host) MoveTabToWindow(ctx context.Context, tabID, windowID int) error {
	return readOnly("move tab to window")
}

func (h *Host) GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	return 0, readOnly("group tabs")
}

func (h *Host) UngroupTabs(ctx context.Context, tabIDs []int) error {
	return readOnly("ungroup tabs")
}

func (h *Host) UpdateGroup(ctx context.Context, groupID int, u host.GroupUpdate) error {
	return readOnly("update group")
}

func (h *Host) DiscardTab(ctx context.Context, tabID int) error {
	return readOnly("discard tab")
}

func (h *Host) ReloadTab(ctx context.Context, tabID int) error {
	return readOnly("reload tab")
}

func (h *Host) RemoveTab(ctx context.Context, tabID int) error {
	return readOnly("close tab")
}

func (h *Host) DuplicateTab(ctx context.Context, tabID int) (types.Tab, error) {
	return types.Tab{}, readOnly("duplicate tab")
}

func (h *Host) UpdateTab(ctx context.Context, tabID int, u host.TabUpdate) error {
	return readOnly("update tab")
}

func (h *Host) CreateTab(ctx context.Context, c host.CreateTab) (types.Tab, error) {
	return types.Tab{}, readOnly("open tab")
}

func (h *Host) CreateWindow(ctx context.Context, tabID int) (int, error) {
	return 0, readOnly("open window")
}
