package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

// Actions understood by the companion extension.
const (
	ActionCurrentWindow = "window.current"
	ActionQueryTabs     = "tabs.query"
	ActionQueryGroups   = "groups.query"
	ActionMoveTabs      = "tabs.move"
	ActionMoveGroup     = "groups.move"
	ActionGroupTabs     = "tabs.group"
	ActionUngroupTabs   = "tabs.ungroup"
	ActionUpdateGroup   = "groups.update"
	ActionDiscardTab    = "tabs.discard"
	ActionReloadTab     = "tabs.reload"
	ActionRemoveTab     = "tabs.remove"
	ActionDuplicateTab  = "tabs.duplicate"
	ActionUpdateTab     = "tabs.update"
	ActionCreateTab     = "tabs.create"
	ActionCreateWindow  = "windows.create"
)

// Error codes a response may carry.
const (
	CodeUnsupported = "unsupported"
	CodeNotFound    = "not_found"
)

// TypeResponse marks an incoming message that answers a command.
const TypeResponse = "response"

// IncomingMsg is a message from the extension: a command response or an
// event.
type IncomingMsg struct {
	Type string `json:"type"`

	// Command response fields
	ID     string          `json:"id,omitempty"`
	OK     *bool           `json:"ok,omitempty"`
	Error  string          `json:"error,omitempty"`
	Code   string          `json:"code,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`

	// Event fields
	WindowID int             `json:"windowId,omitempty"`
	TabID    int             `json:"tabId,omitempty"`
	GroupID  int             `json:"groupId,omitempty"`
	Tab      json.RawMessage `json:"tab,omitempty"`
	Group    json.RawMessage `json:"group,omitempty"`
}

// OutgoingMsg is a command from the sidebar to the extension.
type OutgoingMsg struct {
	ID        string       `json:"id"`
	Action    string       `json:"action"`
	TabID     int          `json:"tabId,omitempty"`
	TabIDs    []int        `json:"tabIds,omitempty"`
	GroupID   int          `json:"groupId,omitempty"`
	WindowID  int          `json:"windowId,omitempty"`
	Index     *int         `json:"index,omitempty"`
	URL       string       `json:"url,omitempty"`
	Title     *string      `json:"title,omitempty"`
	Color     *types.Color `json:"color,omitempty"`
	Collapsed *bool        `json:"collapsed,omitempty"`
	Pinned    *bool        `json:"pinned,omitempty"`
	Active    *bool        `json:"active,omitempty"`
}

// ParseEvent converts an event message into a host.Event. It reports false
// for message types that are not events.
func ParseEvent(msg IncomingMsg) (host.Event, bool) {
	kind := host.EventKind(msg.Type)
	switch kind {
	case host.TabCreated, host.TabUpdated, host.TabRemoved, host.TabActivated, host.TabMoved,
		host.GroupCreated, host.GroupUpdated, host.GroupRemoved, host.GroupMoved:
	default:
		return host.Event{}, false
	}

	ev := host.Event{Kind: kind, WindowID: msg.WindowID, TabID: msg.TabID, GroupID: msg.GroupID}
	if len(msg.Tab) > 0 {
		if t, err := ParseTab(msg.Tab); err == nil {
			ev.TabID = t.ID
			if ev.WindowID == 0 {
				ev.WindowID = t.WindowID
			}
		}
	}
	if len(msg.Group) > 0 {
		var g types.Group
		if err := json.Unmarshal(msg.Group, &g); err == nil {
			ev.GroupID = g.ID
			if ev.WindowID == 0 {
				ev.WindowID = g.WindowID
			}
		}
	}
	return ev, true
}

// ParseTab decodes a browser tab. A missing groupId means ungrouped.
func ParseTab(raw json.RawMessage) (types.Tab, error) {
	t := types.Tab{GroupID: types.GroupIDNone}
	if err := json.Unmarshal(raw, &t); err != nil {
		return types.Tab{}, fmt.Errorf("parse tab: %w", err)
	}
	if t.GroupID == 0 {
		t.GroupID = types.GroupIDNone
	}
	return t, nil
}

// ParseTabs decodes a list of browser tabs.
func ParseTabs(raw json.RawMessage) ([]types.Tab, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse tabs: %w", err)
	}
	tabs := make([]types.Tab, 0, len(items))
	for _, it := range items {
		t, err := ParseTab(it)
		if err != nil {
			return nil, err
		}
		tabs = append(tabs, t)
	}
	return tabs, nil
}

// ParseGroups decodes a list of browser tab groups.
func ParseGroups(raw json.RawMessage) ([]types.Group, error) {
	var groups []types.Group
	if err := json.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	return groups, nil
}
