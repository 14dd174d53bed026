package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a saved group does not exist.
var ErrNotFound = errors.New("not found")

// SavedGroupSummary holds the metadata for a saved group.
type SavedGroupSummary struct {
	ID        string
	Title     string
	Color     string
	CreatedAt time.Time
	TabCount  int
}

// SavedTab is a single tab within a saved group.
type SavedTab struct {
	URL    string
	Title  string
	Pinned bool
}

// SavedGroup is a saved group with its tabs in order.
type SavedGroup struct {
	SavedGroupSummary
	Tabs []SavedTab
}

// migration is a numbered schema change. Migrations are applied in order
// and tracked in the schema_migrations table so each runs exactly once.
type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "key-value store",
		SQL: `
CREATE TABLE IF NOT EXISTS kv (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Version:     2,
		Description: "saved tab groups",
		SQL: `
CREATE TABLE IF NOT EXISTS saved_groups (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    color       TEXT NOT NULL DEFAULT 'grey',
    created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
    tab_count   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS saved_group_tabs (
    id          INTEGER PRIMARY KEY,
    group_id    TEXT NOT NULL REFERENCES saved_groups(id) ON DELETE CASCADE,
    position    INTEGER NOT NULL,
    url         TEXT NOT NULL,
    title       TEXT NOT NULL,
    pinned      BOOLEAN DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS saved_group_tabs_group ON saved_group_tabs(group_id, position);`,
	},
}

// OpenDB opens (or creates) the database at path and applies pending
// migrations.
func OpenDB(path string) (*sql.DB, error) {
	// Create parent directory if needed.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// The sidebar and the CLI may hold the database at the same time.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// runMigrations ensures the schema_migrations table exists and runs any
// pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version     INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if exists > 0 {
			continue
		}

		if _, err := db.Exec(m.SQL); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(
			"INSERT INTO schema_migrations (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// DefaultDBPath returns the default database file path:
// ~/.local/share/sidestack/sidestack.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "sidestack", "sidestack.db"), nil
}

// KV is a string-keyed blob store backed by the kv table. Writes replace the
// whole value; the last writer wins.
type KV struct {
	db *sql.DB
}

// NewKV wraps db.
func NewKV(db *sql.DB) *KV {
	return &KV{db: db}
}

// Get returns the value stored under key. ok is false when key is unset.
func (s *KV) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	var v string
	err = s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(v), true, nil
}

// Set stores value under key.
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(value),
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an unset key is not an error.
func (s *KV) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// CreateSavedGroup inserts a saved group with its tabs in a single
// transaction.
func CreateSavedGroup(db *sql.DB, g SavedGroup) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	color := g.Color
	if color == "" {
		color = "grey"
	}
	if _, err := tx.Exec(
		"INSERT INTO saved_groups (id, title, color, tab_count) VALUES (?, ?, ?, ?)",
		g.ID, g.Title, color, len(g.Tabs),
	); err != nil {
		return fmt.Errorf("insert saved group: %w", err)
	}

	for i, tab := range g.Tabs {
		if _, err := tx.Exec(
			"INSERT INTO saved_group_tabs (group_id, position, url, title, pinned) VALUES (?, ?, ?, ?, ?)",
			g.ID, i, tab.URL, tab.Title, tab.Pinned,
		); err != nil {
			return fmt.Errorf("insert tab %q: %w", tab.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListSavedGroups returns all saved groups, newest first.
func ListSavedGroups(db *sql.DB) ([]SavedGroupSummary, error) {
	rows, err := db.Query(
		"SELECT id, title, color, created_at, tab_count FROM saved_groups ORDER BY created_at DESC, rowid DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("query saved groups: %w", err)
	}
	defer rows.Close()

	var result []SavedGroupSummary
	for rows.Next() {
		var s SavedGroupSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Color, &s.CreatedAt, &s.TabCount); err != nil {
			return nil, fmt.Errorf("scan saved group: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved groups: %w", err)
	}
	return result, nil
}

// GetSavedGroup loads a saved group and its tabs. A unique ID prefix is
// accepted in place of the full ID.
func GetSavedGroup(db *sql.DB, id string) (*SavedGroup, error) {
	full, err := resolveID(db, id)
	if err != nil {
		return nil, err
	}

	g := &SavedGroup{}
	err = db.QueryRow(
		"SELECT id, title, color, created_at, tab_count FROM saved_groups WHERE id = ?", full,
	).Scan(&g.ID, &g.Title, &g.Color, &g.CreatedAt, &g.TabCount)
	if err != nil {
		return nil, fmt.Errorf("query saved group: %w", err)
	}

	rows, err := db.Query(
		"SELECT url, title, pinned FROM saved_group_tabs WHERE group_id = ? ORDER BY position", full,
	)
	if err != nil {
		return nil, fmt.Errorf("query saved tabs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t SavedTab
		if err := rows.Scan(&t.URL, &t.Title, &t.Pinned); err != nil {
			return nil, fmt.Errorf("scan saved tab: %w", err)
		}
		g.Tabs = append(g.Tabs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved tabs: %w", err)
	}
	return g, nil
}

// DeleteSavedGroup removes a saved group and its tabs.
func DeleteSavedGroup(db *sql.DB, id string) error {
	full, err := resolveID(db, id)
	if err != nil {
		return err
	}
	if _, err := db.Exec("DELETE FROM saved_groups WHERE id = ?", full); err != nil {
		return fmt.Errorf("delete saved group: %w", err)
	}
	return nil
}

func resolveID(db *sql.DB, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("saved group %q: %w", id, ErrNotFound)
	}
	rows, err := db.Query("SELECT id FROM saved_groups WHERE id = ? OR id LIKE ? || '%'", id, id)
	if err != nil {
		return "", fmt.Errorf("resolve saved group: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return "", fmt.Errorf("scan saved group id: %w", err)
		}
		if s == id {
			return s, nil
		}
		ids = append(ids, s)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterate saved group ids: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("saved group %q: %w", id, ErrNotFound)
	case 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("saved group prefix %q is ambiguous (%d matches)", id, len(ids))
}
