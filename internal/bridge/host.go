package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

var _ host.Host = (*Server)(nil)
var _ host.GroupMover = (*Server)(nil)

type windowResult struct {
	WindowID int `json:"windowId"`
}

type groupResult struct {
	GroupID int `json:"groupId"`
}

func (s *Server) CurrentWindow(ctx context.Context) (int, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: ActionCurrentWindow})
	if err != nil {
		return 0, err
	}
	var r windowResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, fmt.Errorf("parse window: %w", err)
	}
	return r.WindowID, nil
}

func (s *Server) QueryTabs(ctx context.Context, f host.Filter) ([]types.Tab, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: ActionQueryTabs, WindowID: f.WindowID, GroupID: f.GroupID})
	if err != nil {
		return nil, err
	}
	tabs, err := ParseTabs(raw)
	if err != nil {
		return nil, err
	}
	host.SortTabs(tabs)
	return tabs, nil
}

func (s *Server) QueryGroups(ctx context.Context, f host.Filter) ([]types.Group, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: ActionQueryGroups, WindowID: f.WindowID, GroupID: f.GroupID})
	if err != nil {
		return nil, err
	}
	return ParseGroups(raw)
}

func (s *Server) MoveTab(ctx context.Context, tabID, index int) error {
	return s.MoveTabs(ctx, []int{tabID}, index)
}

func (s *Server) MoveTabs(ctx context.Context, tabIDs []int, index int) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: ActionMoveTabs, TabIDs: tabIDs, Index: &index})
	return err
}

func (s *Server) MoveGroup(ctx context.Context, groupID, index int) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: ActionMoveGroup, GroupID: groupID, Index: &index})
	return err
}

func (s *Server) MoveTabToWindow(ctx context.Context, tabID, windowID int) error {
	end := -1
	_, err := s.Call(ctx, OutgoingMsg{Action: ActionMoveTabs, TabIDs: []int{tabID}, WindowID: windowID, Index: &end})
	return err
}

func (s *Server) GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: ActionGroupTabs, TabIDs: tabIDs, GroupID: groupID})
	if err != nil {
		return 0, err
	}
	var r groupResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, fmt.Errorf("parse group: %w", err)
	}
	return r.GroupID, nil
}

func (s *Server) UngroupTabs(ctx context.Context, tabIDs []int) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: ActionUngroupTabs, TabIDs: tabIDs})
	return err
}

func (s *Server) UpdateGroup(ctx context.Context, groupID int, u host.GroupUpdate) error {
	_, err := s.Call(ctx, OutgoingMsg{
		Action:    ActionUpdateGroup,
		GroupID:   groupID,
		Title:     u.Title,
		Color:     u.Color,
		Collapsed: u.Collapsed,
	})
	return err
}

func (s *Server) DiscardTab(ctx context.Context, tabID int) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: ActionDiscardTab, TabID: tabID})
	return err
}

func (s *Server) ReloadTab(ctx context.Context, tabID int) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: ActionReloadTab, TabID: tabID})
	return err
}

func (s *Server) RemoveTab(ctx context.Context, tabID int) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: ActionRemoveTab, TabIDs: []int{tabID}})
	return err
}

func (s *Server) DuplicateTab(ctx context.Context, tabID int) (types.Tab, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: ActionDuplicateTab, TabID: tabID})
	if err != nil {
		return types.Tab{}, err
	}
	return ParseTab(raw)
}

func (s *Server) UpdateTab(ctx context.Context, tabID int, u host.TabUpdate) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: ActionUpdateTab, TabID: tabID, Pinned: u.Pinned, Active: u.Active})
	return err
}

func (s *Server) CreateTab(ctx context.Context, c host.CreateTab) (types.Tab, error) {
	msg := OutgoingMsg{Action: ActionCreateTab, URL: c.URL, WindowID: c.WindowID}
	if c.Pinned {
		msg.Pinned = &c.Pinned
	}
	msg.Active = &c.Active
	raw, err := s.Call(ctx, msg)
	if err != nil {
		return types.Tab{}, err
	}
	return ParseTab(raw)
}

func (s *Server) CreateWindow(ctx context.Context, tabID int) (int, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: ActionCreateWindow, TabID: tabID})
	if err != nil {
		return 0, err
	}
	var r windowResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return 0, fmt.Errorf("parse window: %w", err)
	}
	return r.WindowID, nil
}
