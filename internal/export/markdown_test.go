package export

import (
	"strings"
	"testing"
)

func TestMarkdown_Sections(t *testing.T) {
	result := Markdown(sampleItems(), Meta{WindowID: 3, ExportedAt: exportedAt})

	for _, want := range []string{
		"# Tabs (window 3)",
		"> Exported 2026-03-14 09:30\n",
		"## Pinned\n\n- [Inbox](https://mail.example.com)\n",
		"- **Research** (blue, 2 tabs)\n  - [Go docs](https://go.dev/doc)\n  - [Bubble Tea](https://github.com/charmbracelet/bubbletea)\n",
		"- [Example](https://example.com) (suspended)\n",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("missing %q, got:\n%s", want, result)
		}
	}
	if strings.Index(result, "**Research**") > strings.Index(result, "[Example]") {
		t.Errorf("group should come before later loose tabs, got:\n%s", result)
	}
}

func TestMarkdown_TitleFallbackToURL(t *testing.T) {
	result := Markdown(sampleItems(), Meta{ExportedAt: exportedAt})
	if !strings.Contains(result, "[https://untitled.example.org/x](https://untitled.example.org/x)") {
		t.Errorf("expected URL as title fallback, got:\n%s", result)
	}
}

func TestMarkdown_SearchAndEmpty(t *testing.T) {
	result := Markdown(nil, Meta{WindowID: 1, Search: "zzz", ExportedAt: exportedAt})
	if !strings.Contains(result, `search "zzz"`) {
		t.Errorf("missing search note, got:\n%s", result)
	}
	if !strings.Contains(result, "No tabs.") || strings.Contains(result, "## Pinned") {
		t.Errorf("unexpected empty output:\n%s", result)
	}
}
