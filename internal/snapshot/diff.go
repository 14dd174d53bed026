package snapshot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lotas/sidestack/internal/storage"
	"github.com/lotas/sidestack/internal/types"
)

// DiffEntry represents a single tab in a diff result.
type DiffEntry struct {
	URL   string
	Title string
}

// DiffResult compares a saved group against the tabs open in a window.
type DiffResult struct {
	Title   string
	Open    []DiffEntry // saved and currently open
	Missing []DiffEntry // saved but not open; a restore would reopen these
}

// Diff reports which tabs of a saved group are already open among tabs.
// Comparison is by exact URL.
func Diff(saved *storage.SavedGroup, tabs []types.Tab) *DiffResult {
	open := make(map[string]bool, len(tabs))
	for _, t := range tabs {
		open[t.URL] = true
	}

	result := &DiffResult{Title: saved.Title}
	for _, t := range saved.Tabs {
		e := DiffEntry{URL: t.URL, Title: t.Title}
		if open[t.URL] {
			result.Open = append(result.Open, e)
		} else {
			result.Missing = append(result.Missing, e)
		}
	}
	sort.Slice(result.Missing, func(i, j int) bool { return result.Missing[i].URL < result.Missing[j].URL })
	return result
}

// FormatDiff returns a human-readable string representation of a DiffResult.
func FormatDiff(d *DiffResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Saved group %q\n", d.Title)
	fmt.Fprintf(&sb, "Open: %d  Missing: %d\n", len(d.Open), len(d.Missing))

	if len(d.Missing) > 0 {
		sb.WriteString("\n+ Would reopen:\n")
		for _, e := range d.Missing {
			fmt.Fprintf(&sb, "  + %s\n", e.URL)
		}
	}
	if len(d.Open) > 0 {
		sb.WriteString("\n= Already open:\n")
		for _, e := range d.Open {
			fmt.Fprintf(&sb, "  = %s\n", e.URL)
		}
	}
	if len(d.Missing) == 0 {
		sb.WriteString("\nEverything is open.\n")
	}

	return sb.String()
}
