package export

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/lotas/sidestack/internal/viewmodel"
)

// Meta describes where an export came from.
type Meta struct {
	WindowID   int
	Search     string
	ExportedAt time.Time
}

type jsonExport struct {
	WindowID   int        `json:"window_id"`
	Search     string     `json:"search,omitempty"`
	ExportedAt time.Time  `json:"exported_at"`
	Items      []jsonItem `json:"items"`
}

type jsonItem struct {
	Kind      string    `json:"kind"`
	Tab       *jsonTab  `json:"tab,omitempty"`
	Title     string    `json:"title,omitempty"`
	Color     string    `json:"color,omitempty"`
	Collapsed bool      `json:"collapsed,omitempty"`
	Tabs      []jsonTab `json:"tabs,omitempty"`
}

type jsonTab struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	Pinned    bool   `json:"pinned,omitempty"`
	Active    bool   `json:"active,omitempty"`
	Audible   bool   `json:"audible,omitempty"`
	Discarded bool   `json:"discarded,omitempty"`
}

// JSON formats the sidebar items as a JSON document.
func JSON(items []viewmodel.Item, meta Meta) (string, error) {
	out := jsonExport{
		WindowID:   meta.WindowID,
		Search:     meta.Search,
		ExportedAt: meta.ExportedAt,
		Items:      make([]jsonItem, 0, len(items)),
	}

	for _, it := range items {
		if it.Kind == viewmodel.KindTab {
			t := toJSONTab(it)
			out.Items = append(out.Items, jsonItem{Kind: "tab", Tab: &t})
			continue
		}
		group := jsonItem{
			Kind:      "group",
			Title:     it.Group.Title,
			Color:     string(it.Group.Color),
			Collapsed: it.Group.Collapsed,
			Tabs:      make([]jsonTab, 0, len(it.Tabs)),
		}
		for _, t := range viewmodel.MemberOrder(it) {
			group.Tabs = append(group.Tabs, toJSONTab(viewmodel.Item{Tab: t}))
		}
		out.Items = append(out.Items, group)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

func toJSONTab(it viewmodel.Item) jsonTab {
	return jsonTab{
		ID:        it.Tab.ID,
		Title:     it.Tab.Title,
		URL:       it.Tab.URL,
		Domain:    extractDomain(it.Tab.URL),
		Pinned:    it.Pinned || it.Tab.Pinned,
		Active:    it.Tab.Active,
		Audible:   it.Tab.Audible,
		Discarded: it.Tab.Discarded,
	}
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Hostname()
}
