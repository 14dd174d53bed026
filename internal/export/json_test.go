package export

import (
	"encoding/json"
	"testing"
)

func TestJSON_Items(t *testing.T) {
	result, err := JSON(sampleItems(), Meta{WindowID: 3, Search: "", ExportedAt: exportedAt})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\noutput:\n%s", err, result)
	}

	if parsed.WindowID != 3 || !parsed.ExportedAt.Equal(exportedAt) {
		t.Errorf("header = %+v", parsed)
	}
	if len(parsed.Items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(parsed.Items))
	}

	pinned := parsed.Items[0]
	if pinned.Kind != "tab" || pinned.Tab == nil || !pinned.Tab.Pinned || pinned.Tab.Domain != "mail.example.com" {
		t.Errorf("pinned item = %+v", pinned)
	}

	group := parsed.Items[1]
	if group.Kind != "group" || group.Title != "Research" || group.Color != "blue" {
		t.Errorf("group item = %+v", group)
	}
	if len(group.Tabs) != 2 || group.Tabs[0].Domain != "go.dev" || !group.Tabs[0].Active {
		t.Errorf("group tabs = %+v", group.Tabs)
	}

	loose := parsed.Items[2]
	if loose.Tab == nil || !loose.Tab.Discarded || loose.Tab.Domain != "example.com" {
		t.Errorf("loose item = %+v", loose)
	}
}

func TestJSON_Empty(t *testing.T) {
	result, err := JSON(nil, Meta{WindowID: 1, Search: "none", ExportedAt: exportedAt})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Search != "none" || len(parsed.Items) != 0 {
		t.Errorf("parsed = %+v", parsed)
	}
}
