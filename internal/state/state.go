// Package state persists the sidebar's own data: theme, the tabs it
// suspended, settings and a short-lived copy of the last tab list. Values are
// JSON blobs in a key-value store; the last write wins.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/types"
)

// Storage keys.
const (
	StateKey     = "sidestack_state_v1"
	SettingsKey  = "sidestack_settings_v1"
	TabsCacheKey = "sidestack_tabs_cache_v1"
)

// CacheTTL is how long a cached tab list is served for first paint.
const CacheTTL = 30 * time.Second

const (
	legacyAccent  = "#22d3ee"
	defaultAccent = "#D3E3FE"
)

// Store is a string-keyed blob store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Palette holds the theme colors.
type Palette struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
	Accent    string `json:"accent"`
}

// Theme is the stored appearance.
type Theme struct {
	Mode    string  `json:"mode"`
	Palette Palette `json:"palette"`
}

// DefaultTheme is used when nothing is stored.
func DefaultTheme() Theme {
	return Theme{
		Mode: "system",
		Palette: Palette{
			Primary:   "#3b82f6",
			Secondary: "#0ea5e9",
			Accent:    defaultAccent,
		},
	}
}

// SuspendedTab remembers a tab the sidebar discarded.
type SuspendedTab struct {
	ID         int    `json:"id"`
	URL        string `json:"url,omitempty"`
	Title      string `json:"title,omitempty"`
	FavIconURL string `json:"favIconUrl,omitempty"`
	WindowID   int    `json:"windowId,omitempty"`
	Index      int    `json:"index,omitempty"`
}

// State is the persisted sidebar state.
type State struct {
	Theme          Theme             `json:"theme"`
	SuspendedTabs  []SuspendedTab    `json:"suspendedTabs"`
	SavedTabGroups []json.RawMessage `json:"savedTabGroups"`
}

// SuspendedByID indexes the suspended list.
func (s State) SuspendedByID() map[int]SuspendedTab {
	out := make(map[int]SuspendedTab, len(s.SuspendedTabs))
	for _, t := range s.SuspendedTabs {
		out[t.ID] = t
	}
	return out
}

type rawPalette struct {
	Primary   *string `json:"primary"`
	Secondary *string `json:"secondary"`
	Accent    *string `json:"accent"`
}

type rawTheme struct {
	Mode    *string     `json:"mode"`
	Palette *rawPalette `json:"palette"`
}

type rawState struct {
	Theme           *rawTheme       `json:"theme"`
	SuspendedTabs   []SuspendedTab  `json:"suspendedTabs"`
	SuspendedTabIDs []int           `json:"suspendedTabIds"`
	SavedTabGroups  json.RawMessage `json:"savedTabGroups"`
}

// Normalize decodes a stored blob of any earlier shape. Missing theme fields
// take defaults, a legacy suspendedTabIds list is used when suspendedTabs is
// empty, and a non-array savedTabGroups becomes empty.
func Normalize(data []byte) (State, error) {
	var raw rawState
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}

	st := State{Theme: mergeTheme(raw.Theme), SuspendedTabs: raw.SuspendedTabs}
	if len(st.SuspendedTabs) == 0 && len(raw.SuspendedTabIDs) > 0 {
		for _, id := range raw.SuspendedTabIDs {
			st.SuspendedTabs = append(st.SuspendedTabs, SuspendedTab{ID: id})
		}
		applog.Warn("state.legacy_suspended", "count", len(raw.SuspendedTabIDs))
	}
	if st.SuspendedTabs == nil {
		st.SuspendedTabs = []SuspendedTab{}
	}

	var groups []json.RawMessage
	if len(raw.SavedTabGroups) > 0 && json.Unmarshal(raw.SavedTabGroups, &groups) == nil {
		st.SavedTabGroups = groups
	}
	if st.SavedTabGroups == nil {
		st.SavedTabGroups = []json.RawMessage{}
	}
	return st, nil
}

func mergeTheme(raw *rawTheme) Theme {
	t := DefaultTheme()
	if raw == nil {
		return t
	}
	if raw.Mode != nil {
		t.Mode = *raw.Mode
	}
	if p := raw.Palette; p != nil {
		if p.Primary != nil {
			t.Palette.Primary = *p.Primary
		}
		if p.Secondary != nil {
			t.Palette.Secondary = *p.Secondary
		}
		if p.Accent != nil {
			t.Palette.Accent = *p.Accent
		}
	}
	return t
}

// Manager reads and writes the stored blobs. Read-modify-write operations
// are serialized within the process.
type Manager struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

// NewManager wraps a store.
func NewManager(s Store) *Manager {
	return &Manager{store: s, now: time.Now}
}

// Load returns the stored state, writing the default state first if none
// exists.
func (m *Manager) Load(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(ctx)
}

func (m *Manager) loadLocked(ctx context.Context) (State, error) {
	data, ok, err := m.store.Get(ctx, StateKey)
	if err != nil {
		return State{}, err
	}
	if !ok {
		st := State{
			Theme:          DefaultTheme(),
			SuspendedTabs:  []SuspendedTab{},
			SavedTabGroups: []json.RawMessage{},
		}
		return st, m.saveLocked(ctx, st)
	}
	return Normalize(data)
}

// Save replaces the stored state.
func (m *Manager) Save(ctx context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(ctx, st)
}

func (m *Manager) saveLocked(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return m.store.Set(ctx, StateKey, data)
}

// Migrate rewrites the retired default accent color. It reports whether
// anything changed.
func (m *Manager) Migrate(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	if st.Theme.Palette.Accent != legacyAccent {
		return false, nil
	}
	st.Theme.Palette.Accent = defaultAccent
	applog.Info("state.migrated", "accent", defaultAccent)
	return true, m.saveLocked(ctx, st)
}

// UpsertSuspended records a suspended tab, replacing an earlier record for
// the same tab in place.
func (m *Manager) UpsertSuspended(ctx context.Context, t SuspendedTab) (State, error) {
	return m.update(ctx, func(st *State) {
		for i := range st.SuspendedTabs {
			if st.SuspendedTabs[i].ID == t.ID {
				st.SuspendedTabs[i] = t
				return
			}
		}
		st.SuspendedTabs = append(st.SuspendedTabs, t)
	})
}

// RemoveSuspended forgets a suspended tab.
func (m *Manager) RemoveSuspended(ctx context.Context, tabID int) (State, error) {
	return m.update(ctx, func(st *State) {
		kept := st.SuspendedTabs[:0]
		for _, t := range st.SuspendedTabs {
			if t.ID != tabID {
				kept = append(kept, t)
			}
		}
		st.SuspendedTabs = kept
	})
}

// PruneSuspended drops records of tabs that no longer exist.
func (m *Manager) PruneSuspended(ctx context.Context, live map[int]bool) (State, error) {
	return m.update(ctx, func(st *State) {
		kept := st.SuspendedTabs[:0]
		for _, t := range st.SuspendedTabs {
			if live[t.ID] {
				kept = append(kept, t)
			}
		}
		st.SuspendedTabs = kept
	})
}

// SetThemeMode changes the stored theme mode.
func (m *Manager) SetThemeMode(ctx context.Context, mode string) (State, error) {
	return m.update(ctx, func(st *State) { st.Theme.Mode = mode })
}

func (m *Manager) update(ctx context.Context, fn func(*State)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.loadLocked(ctx)
	if err != nil {
		return State{}, err
	}
	fn(&st)
	if err := m.saveLocked(ctx, st); err != nil {
		return State{}, err
	}
	return st, nil
}

// TabsCache is the last tab list seen for a window.
type TabsCache struct {
	Tabs      []types.Tab   `json:"tabs"`
	Groups    []types.Group `json:"groups"`
	Timestamp int64         `json:"timestamp"` // unix millis
	WindowID  int           `json:"windowId"`
}

// CacheTabs stores the tab list of a window.
func (m *Manager) CacheTabs(ctx context.Context, windowID int, tabs []types.Tab, groups []types.Group) error {
	data, err := json.Marshal(TabsCache{
		Tabs:      tabs,
		Groups:    groups,
		Timestamp: m.now().UnixMilli(),
		WindowID:  windowID,
	})
	if err != nil {
		return fmt.Errorf("encode tabs cache: %w", err)
	}
	return m.store.Set(ctx, TabsCacheKey, data)
}

// CachedTabs returns the cached tab list when it belongs to windowID and is
// younger than CacheTTL, otherwise nil.
func (m *Manager) CachedTabs(ctx context.Context, windowID int) (*TabsCache, error) {
	data, ok, err := m.store.Get(ctx, TabsCacheKey)
	if err != nil || !ok {
		return nil, err
	}
	var c TabsCache
	if err := json.Unmarshal(data, &c); err != nil {
		applog.Error("state.cache_decode", err)
		return nil, nil
	}
	age := m.now().Sub(time.UnixMilli(c.Timestamp))
	if c.WindowID != windowID || age > CacheTTL || age < 0 {
		return nil, nil
	}
	return &c, nil
}

// ClearTabsCache removes the cached tab list.
func (m *Manager) ClearTabsCache(ctx context.Context) error {
	return m.store.Remove(ctx, TabsCacheKey)
}
