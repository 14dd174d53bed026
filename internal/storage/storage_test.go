package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "sidestack.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != len(migrations) {
		t.Errorf("applied %d migrations, want %d", n, len(migrations))
	}
}

func TestOpenDBTwiceIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "twice.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	db.Close()
}

func TestKV(t *testing.T) {
	kv := NewKV(testDB(t))
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	if err := kv.Set(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Set(ctx, "k", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("Set again: %v", err)
	}
	v, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = ok %v, err %v", ok, err)
	}
	if string(v) != `{"a":2}` {
		t.Errorf("Get(k) = %s, want last write", v)
	}

	if err := kv.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "k"); ok {
		t.Error("key still present after Remove")
	}
	if err := kv.Remove(ctx, "k"); err != nil {
		t.Errorf("Remove of unset key: %v", err)
	}
}

func TestSavedGroupRoundTrip(t *testing.T) {
	db := testDB(t)

	g := SavedGroup{
		SavedGroupSummary: SavedGroupSummary{ID: "4f1c2a90-0000-4000-8000-000000000001", Title: "Work", Color: "blue"},
		Tabs: []SavedTab{
			{URL: "https://ci.example.com", Title: "CI"},
			{URL: "https://docs.example.com", Title: "Docs", Pinned: true},
		},
	}
	if err := CreateSavedGroup(db, g); err != nil {
		t.Fatalf("CreateSavedGroup: %v", err)
	}

	list, err := ListSavedGroups(db)
	if err != nil {
		t.Fatalf("ListSavedGroups: %v", err)
	}
	if len(list) != 1 || list[0].TabCount != 2 || list[0].Title != "Work" {
		t.Fatalf("ListSavedGroups = %+v", list)
	}

	got, err := GetSavedGroup(db, "4f1c2a90")
	if err != nil {
		t.Fatalf("GetSavedGroup by prefix: %v", err)
	}
	if got.Color != "blue" || len(got.Tabs) != 2 {
		t.Fatalf("GetSavedGroup = %+v", got)
	}
	if got.Tabs[0].URL != "https://ci.example.com" || !got.Tabs[1].Pinned {
		t.Errorf("tabs out of order: %+v", got.Tabs)
	}

	if err := DeleteSavedGroup(db, g.ID); err != nil {
		t.Fatalf("DeleteSavedGroup: %v", err)
	}
	var n int
	db.QueryRow("SELECT COUNT(*) FROM saved_group_tabs").Scan(&n)
	if n != 0 {
		t.Errorf("%d saved tabs left after delete, want 0", n)
	}
	if _, err := GetSavedGroup(db, g.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSavedGroup after delete: err = %v, want ErrNotFound", err)
	}
}

func TestSavedGroupAmbiguousPrefix(t *testing.T) {
	db := testDB(t)
	for _, id := range []string{"abc-1", "abc-2"} {
		if err := CreateSavedGroup(db, SavedGroup{SavedGroupSummary: SavedGroupSummary{ID: id, Title: id}}); err != nil {
			t.Fatalf("CreateSavedGroup(%s): %v", id, err)
		}
	}
	if _, err := GetSavedGroup(db, "abc"); err == nil {
		t.Error("expected ambiguity error")
	}
	if _, err := GetSavedGroup(db, "abc-2"); err != nil {
		t.Errorf("exact ID: %v", err)
	}
}
