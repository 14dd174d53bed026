package firefox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lotas/sidestack/internal/host"
)

func writeSession(t *testing.T, profileDir string, data []byte) {
	t.Helper()
	backupDir := filepath.Join(profileDir, "sessionstore-backups")
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		t.Fatal(err)
	}
	packed, err := CompressMozLz4(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(backupDir, "recovery.jsonlz4"), packed, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestHostQueries(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, sessionJSON(t))
	h := NewHost(dir)
	ctx := context.Background()

	wid, err := h.CurrentWindow(ctx)
	if err != nil || wid != 2 {
		t.Fatalf("CurrentWindow = %d, %v", wid, err)
	}

	tabs, err := h.QueryTabs(ctx, host.Filter{WindowID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(tabs) != 3 {
		t.Fatalf("window 1 tabs = %+v", tabs)
	}
	members, _ := h.QueryTabs(ctx, host.Filter{GroupID: 1})
	if len(members) != 1 || members[0].URL != "https://example.com" {
		t.Errorf("group members = %+v", members)
	}
	groups, _ := h.QueryGroups(ctx, host.Filter{WindowID: 2})
	if len(groups) != 1 || groups[0].Title != "Gray" {
		t.Errorf("window 2 groups = %+v", groups)
	}
}

func TestHostIsReadOnly(t *testing.T) {
	h := NewHost(t.TempDir())
	ctx := context.Background()
	if err := h.MoveTab(ctx, 1, 0); !errors.Is(err, host.ErrUnsupported) {
		t.Errorf("MoveTab err = %v", err)
	}
	if _, err := h.GroupTabs(ctx, []int{1}, 0); !errors.Is(err, host.ErrUnsupported) {
		t.Errorf("GroupTabs err = %v", err)
	}
	if _, err := h.QueryTabs(ctx, host.Filter{}); err == nil {
		t.Error("expected error for a profile without a session file")
	}
}

func TestHostWatchNotices(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, sessionJSON(t))
	h := NewHost(dir)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go h.Watch(ctx, 10*time.Millisecond)

	// Let the watcher record the first modification time.
	time.Sleep(50 * time.Millisecond)
	path := filepath.Join(dir, "sessionstore-backups", "recovery.jsonlz4")
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-h.Events():
		if ev.Kind != host.TabUpdated || ev.WindowID != 0 {
			t.Errorf("event = %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("no event after the session file changed")
	}
}
