package render

import "net/url"

// IconKind says where a tab icon came from.
type IconKind int

const (
	IconGeneric IconKind = iota
	IconFavicon
	IconBrowserPage // built-in browser page, see Icon.Class
	IconURL         // protocol-derived icon URL
)

// Icon describes the icon shown before a tab title.
type Icon struct {
	Kind  IconKind
	URL   string
	Class string
}

var browserPageClass = map[string]string{
	"extensions": "chrome-extensions",
	"settings":   "chrome-settings",
	"flags":      "chrome-flags",
	"bookmarks":  "chrome-bookmarks",
	"history":    "chrome-history",
	"downloads":  "chrome-downloads",
	"newtab":     "chrome-newtab",
}

// Favicon picks the icon for a tab: the explicit favicon when known, then a
// fallback derived from the page URL's protocol, then a generic icon.
func Favicon(favicon, pageURL string) Icon {
	if favicon != "" {
		return Icon{Kind: IconFavicon, URL: favicon}
	}
	if pageURL == "" {
		return Icon{Kind: IconGeneric}
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return Icon{Kind: IconGeneric}
	}
	switch u.Scheme {
	case "chrome":
		if class, ok := browserPageClass[u.Hostname()]; ok {
			return Icon{Kind: IconBrowserPage, Class: class}
		}
		return Icon{Kind: IconBrowserPage, Class: "chrome"}
	case "chrome-extension":
		return Icon{Kind: IconURL, URL: "chrome://extension-icon/" + u.Host + "/128/0"}
	}
	return Icon{Kind: IconGeneric}
}
