// Package tabops implements the tab operations that span several host calls:
// suspension, duplicate cleanup and grouping by domain.
package tabops

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

// NormalizeURL reduces a URL to the form used to spot duplicates: no
// fragment, sorted query parameters, no trailing slash on paths.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	params := u.Query()
	for k := range params {
		sort.Strings(params[k])
	}
	u.RawQuery = params.Encode()
	result := u.String()
	if strings.HasSuffix(result, "/") && result != u.Scheme+"://"+u.Host+"/" {
		result = strings.TrimRight(result, "/")
	}
	return result
}

// Duplicates marks every tab whose normalized URL is shared with another tab.
func Duplicates(tabs []types.Tab) map[int]bool {
	byURL := make(map[string][]int)
	for _, t := range tabs {
		if t.URL == "" {
			continue
		}
		n := NormalizeURL(t.URL)
		byURL[n] = append(byURL[n], t.ID)
	}
	out := make(map[int]bool)
	for _, ids := range byURL {
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			out[id] = true
		}
	}
	return out
}

// DuplicatesToClose picks, for each set of duplicates, every tab except the
// one worth keeping: the active tab, else a pinned one, else the leftmost.
func DuplicatesToClose(tabs []types.Tab) []int {
	byURL := make(map[string][]types.Tab)
	var order []string
	sorted := make([]types.Tab, len(tabs))
	copy(sorted, tabs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	for _, t := range sorted {
		if t.URL == "" {
			continue
		}
		n := NormalizeURL(t.URL)
		if _, seen := byURL[n]; !seen {
			order = append(order, n)
		}
		byURL[n] = append(byURL[n], t)
	}

	var out []int
	for _, n := range order {
		set := byURL[n]
		if len(set) < 2 {
			continue
		}
		keep := set[0].ID
		for _, t := range set {
			if t.Pinned {
				keep = t.ID
				break
			}
		}
		for _, t := range set {
			if t.Active {
				keep = t.ID
				break
			}
		}
		for _, t := range set {
			if t.ID != keep {
				out = append(out, t.ID)
			}
		}
	}
	return out
}

// CloseDuplicates closes duplicate tabs in a window and returns how many
// were closed. It stops at the first failure.
func CloseDuplicates(ctx context.Context, h host.Host, windowID int) (int, error) {
	tabs, err := h.QueryTabs(ctx, host.Filter{WindowID: windowID})
	if err != nil {
		return 0, fmt.Errorf("query tabs: %w", err)
	}
	closed := 0
	for _, id := range DuplicatesToClose(tabs) {
		if err := h.RemoveTab(ctx, id); err != nil {
			return closed, fmt.Errorf("close tab %d: %w", id, err)
		}
		closed++
	}
	applog.Info("tabops.dedupe", "window", windowID, "closed", closed)
	return closed, nil
}
