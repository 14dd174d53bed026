package export

import (
	"fmt"
	"strings"

	"github.com/lotas/sidestack/internal/viewmodel"
)

// Markdown formats the sidebar items as a markdown document. Pinned tabs get
// their own section; groups become nested lists in sidebar order.
func Markdown(items []viewmodel.Item, meta Meta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Tabs (window %d)\n", meta.WindowID)
	fmt.Fprintf(&b, "> Exported %s", meta.ExportedAt.Format("2006-01-02 15:04"))
	if meta.Search != "" {
		fmt.Fprintf(&b, ", search %q", meta.Search)
	}
	b.WriteString("\n")

	var pinned, rest []viewmodel.Item
	for _, it := range items {
		if it.Kind == viewmodel.KindTab && it.Pinned {
			pinned = append(pinned, it)
		} else {
			rest = append(rest, it)
		}
	}

	if len(pinned) > 0 {
		b.WriteString("\n## Pinned\n\n")
		for _, it := range pinned {
			writeTab(&b, "", it)
		}
	}
	if len(rest) > 0 {
		b.WriteString("\n## Tabs\n\n")
		for _, it := range rest {
			if it.Kind == viewmodel.KindTab {
				writeTab(&b, "", it)
				continue
			}
			fmt.Fprintf(&b, "- **%s** (%s, %s)\n", groupTitle(it), it.Group.Color, tabCount(len(it.Tabs)))
			for _, t := range viewmodel.MemberOrder(it) {
				writeTab(&b, "  ", viewmodel.Item{Kind: viewmodel.KindTab, Tab: t})
			}
		}
	}
	if len(items) == 0 {
		b.WriteString("\nNo tabs.\n")
	}
	return b.String()
}

func writeTab(b *strings.Builder, indent string, it viewmodel.Item) {
	title := it.Tab.Title
	if title == "" {
		title = it.Tab.URL
	}
	fmt.Fprintf(b, "%s- [%s](%s)", indent, title, it.Tab.URL)
	if it.Tab.Discarded {
		b.WriteString(" (suspended)")
	}
	b.WriteString("\n")
}

func groupTitle(it viewmodel.Item) string {
	if it.Group.Title == "" {
		return "Unnamed group"
	}
	return it.Group.Title
}

func tabCount(n int) string {
	if n == 1 {
		return "1 tab"
	}
	return fmt.Sprintf("%d tabs", n)
}
