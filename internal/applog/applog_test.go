package applog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWritesEvents(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()

	Info("ws.connected", "remote", "127.0.0.1:5000")
	Warn("state.normalized", "dropped", 2)
	Error("dnd.drop", errors.New("tab moved away"), "strategy", "block")

	data, err := os.ReadFile(filepath.Join(dir, "sidestack.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), data)
	}
	if !strings.Contains(lines[0], "INFO ws.connected remote=127.0.0.1:5000") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "WARN state.normalized dropped=2") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], `ERROR dnd.drop err="tab moved away" strategy=block`) {
		t.Errorf("line 2 = %q", lines[2])
	}
	if Path() != filepath.Join(dir, "sidestack.log") {
		t.Errorf("Path() = %q", Path())
	}
}

func TestRotatesLargeFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sidestack.log")
	if err := os.WriteFile(p, make([]byte, maxFileSize+1), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Close()
	if _, err := os.Stat(p + ".1"); err != nil {
		t.Fatalf("rotated file missing: %v", err)
	}
}

func TestNoopWithoutInit(t *testing.T) {
	Close()
	Info("ignored")
	if Path() != "" {
		t.Errorf("Path() = %q before Init", Path())
	}
}

func TestQuoteTruncates(t *testing.T) {
	long := strings.Repeat("x", maxValueLen+10)
	got := quote(long)
	if !strings.HasSuffix(got, truncSuffix) {
		t.Errorf("quote did not truncate: %q", got)
	}
	if quote("a b") != `"a b"` {
		t.Errorf("quote(%q) = %q", "a b", quote("a b"))
	}
}
