package tabops

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"unicode/utf16"

	"github.com/gobwas/glob"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/types"
)

// Domain returns the hostname of a URL, or "" when there is none.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// PickColor maps a domain to a stable group color.
func PickColor(domain string) types.Color {
	var hash int32
	for _, c := range utf16.Encode([]rune(domain)) {
		hash = (hash << 5) - hash + int32(c)
	}
	h := int64(hash)
	if h < 0 {
		h = -h
	}
	return types.Colors[h%int64(len(types.Colors))]
}

// CompileIgnore compiles hostname patterns such as "*.google.com". Dots
// separate pattern segments, so "*" does not cross a dot.
func CompileIgnore(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("ignore pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// DomainGroups lists the unpinned tab IDs of each domain with at least two
// such tabs, skipping ignored domains. Domains come back sorted.
func DomainGroups(tabs []types.Tab, ignore []glob.Glob) (domains []string, members map[string][]int) {
	sorted := make([]types.Tab, len(tabs))
	copy(sorted, tabs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	members = make(map[string][]int)
	for _, t := range sorted {
		if t.Pinned {
			continue
		}
		d := Domain(t.URL)
		if d == "" || ignored(d, ignore) {
			continue
		}
		members[d] = append(members[d], t.ID)
	}
	for d, ids := range members {
		if len(ids) < 2 {
			delete(members, d)
			continue
		}
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains, members
}

func ignored(domain string, ignore []glob.Glob) bool {
	for _, g := range ignore {
		if g.Match(domain) {
			return true
		}
	}
	return false
}

// GroupByDomain puts same-domain tabs of a window into groups titled with
// the domain. Every domain is attempted; failures are joined.
func GroupByDomain(ctx context.Context, h host.Host, windowID int, ignore []glob.Glob) (int, error) {
	tabs, err := h.QueryTabs(ctx, host.Filter{WindowID: windowID})
	if err != nil {
		return 0, fmt.Errorf("query tabs: %w", err)
	}
	domains, members := DomainGroups(tabs, ignore)

	var errs []error
	grouped := 0
	for _, d := range domains {
		gid, err := h.GroupTabs(ctx, members[d], 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", d, err))
			continue
		}
		color := PickColor(d)
		title := d
		if err := h.UpdateGroup(ctx, gid, host.GroupUpdate{Title: &title, Color: &color}); err != nil {
			errs = append(errs, fmt.Errorf("label group %s: %w", d, err))
			continue
		}
		grouped++
	}
	applog.Info("tabops.group_by_domain", "window", windowID, "groups", grouped, "failed", len(errs))
	return grouped, errors.Join(errs...)
}
