package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

// fakeExtension answers commands with reply until the connection closes.
type fakeExtension struct {
	conn     *websocket.Conn
	received chan OutgoingMsg
}

func dialExtension(t *testing.T, ctx context.Context, url string, reply func(OutgoingMsg) IncomingMsg) *fakeExtension {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	ext := &fakeExtension{conn: conn, received: make(chan OutgoingMsg, 16)}
	go func() {
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var cmd OutgoingMsg
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			ext.received <- cmd
			if reply == nil {
				continue
			}
			resp := reply(cmd)
			resp.Type = TypeResponse
			resp.ID = cmd.ID
			out, _ := json.Marshal(resp)
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				return
			}
		}
	}()
	return ext
}

func ok(result any) IncomingMsg {
	yes := true
	raw, _ := json.Marshal(result)
	return IncomingMsg{OK: &yes, Result: raw}
}

func fail(code, text string) IncomingMsg {
	no := false
	return IncomingMsg{OK: &no, Code: code, Error: text}
}

func waitConnected(t *testing.T, s *Server) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !s.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("extension never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQueryTabsRoundTrip(t *testing.T) {
	srv := New(0, time.Second)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ext := dialExtension(t, ctx, ts.URL, func(cmd OutgoingMsg) IncomingMsg {
		return ok([]map[string]any{
			{"id": 5, "index": 1, "windowId": 1, "title": "B", "url": "https://b", "groupId": -1},
			{"id": 4, "index": 0, "windowId": 1, "title": "A", "url": "https://a", "groupId": 3, "favIconUrl": "https://a/f.ico"},
		})
	})
	waitConnected(t, srv)

	tabs, err := srv.QueryTabs(ctx, host.Filter{WindowID: 1})
	if err != nil {
		t.Fatalf("QueryTabs: %v", err)
	}
	if len(tabs) != 2 || tabs[0].ID != 4 || tabs[1].ID != 5 {
		t.Fatalf("tabs = %+v, want sorted by index", tabs)
	}
	if tabs[0].GroupID != 3 || tabs[0].FavIconURL != "https://a/f.ico" || tabs[1].Grouped() {
		t.Errorf("tabs = %+v", tabs)
	}

	cmd := <-ext.received
	if cmd.Action != ActionQueryTabs || cmd.WindowID != 1 || !strings.HasPrefix(cmd.ID, "cmd-") {
		t.Errorf("command = %+v", cmd)
	}
}

func TestCommandFields(t *testing.T) {
	srv := New(0, time.Second)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ext := dialExtension(t, ctx, ts.URL, func(cmd OutgoingMsg) IncomingMsg {
		if cmd.Action == ActionGroupTabs {
			return ok(map[string]int{"groupId": 12})
		}
		return ok(nil)
	})
	waitConnected(t, srv)

	if err := srv.MoveTab(ctx, 7, 0); err != nil {
		t.Fatalf("MoveTab: %v", err)
	}
	cmd := <-ext.received
	if cmd.Action != ActionMoveTabs || len(cmd.TabIDs) != 1 || cmd.Index == nil || *cmd.Index != 0 {
		t.Errorf("move command = %+v", cmd)
	}

	gid, err := srv.GroupTabs(ctx, []int{1, 2}, 0)
	if err != nil || gid != 12 {
		t.Fatalf("GroupTabs = %d, %v", gid, err)
	}
	<-ext.received

	color := types.ColorRed
	if err := srv.UpdateGroup(ctx, 12, host.GroupUpdate{Color: &color}); err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	cmd = <-ext.received
	if cmd.Color == nil || *cmd.Color != types.ColorRed || cmd.Title != nil {
		t.Errorf("update command = %+v", cmd)
	}
}

func TestErrorResponses(t *testing.T) {
	srv := New(0, time.Second)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dialExtension(t, ctx, ts.URL, func(cmd OutgoingMsg) IncomingMsg {
		switch cmd.Action {
		case ActionMoveGroup:
			return fail(CodeUnsupported, "tabGroups.move unavailable")
		case ActionRemoveTab:
			return fail(CodeNotFound, "No tab with id: 9")
		}
		return fail("", "boom")
	})
	waitConnected(t, srv)

	if err := srv.MoveGroup(ctx, 1, 0); !errors.Is(err, host.ErrUnsupported) {
		t.Errorf("MoveGroup err = %v, want ErrUnsupported", err)
	}
	if err := srv.RemoveTab(ctx, 9); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("RemoveTab err = %v, want ErrNotFound", err)
	}
	if err := srv.ReloadTab(ctx, 1); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("ReloadTab err = %v", err)
	}
}

func TestNotConnected(t *testing.T) {
	srv := New(0, time.Second)
	if _, err := srv.QueryTabs(context.Background(), host.Filter{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestTimeout(t *testing.T) {
	srv := New(0, 50*time.Millisecond)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	dialExtension(t, ctx, ts.URL, nil) // never answers
	waitConnected(t, srv)

	_, err := srv.CurrentWindow(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestEventsDelivered(t *testing.T) {
	srv := New(0, time.Second)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ext := dialExtension(t, ctx, ts.URL, nil)

	// The connection itself is announced so the sidebar refreshes.
	select {
	case ev := <-srv.Events():
		if ev.WindowID != 0 {
			t.Errorf("connect event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for connect event")
	}

	msg := `{"type":"tab.created","tab":{"id":8,"index":2,"windowId":3,"groupId":-1}}`
	if err := ext.conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case ev := <-srv.Events():
		if ev.Kind != host.TabCreated || ev.TabID != 8 || ev.WindowID != 3 {
			t.Errorf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestParseEventRejectsUnknown(t *testing.T) {
	if _, ok := ParseEvent(IncomingMsg{Type: "snapshot"}); ok {
		t.Error("snapshot is not an event")
	}
	ev, ok := ParseEvent(IncomingMsg{Type: "group.updated", Group: json.RawMessage(`{"id":4,"windowId":2}`)})
	if !ok || ev.GroupID != 4 || ev.WindowID != 2 {
		t.Errorf("event = %+v, %v", ev, ok)
	}
}

func TestParseTabDefaultsToUngrouped(t *testing.T) {
	tab, err := ParseTab(json.RawMessage(`{"id":1,"title":"x"}`))
	if err != nil {
		t.Fatal(err)
	}
	if tab.Grouped() {
		t.Errorf("tab without groupId should be ungrouped: %+v", tab)
	}
}
