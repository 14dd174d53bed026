package types

// GroupIDNone marks a tab that belongs to no group.
const GroupIDNone = -1

// Tab represents a single browser tab as reported by the host.
type Tab struct {
	ID         int    `json:"id"`
	Index      int    `json:"index"`
	WindowID   int    `json:"windowId"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	FavIconURL string `json:"favIconUrl,omitempty"`
	Pinned     bool   `json:"pinned"`
	Audible    bool   `json:"audible"`
	Discarded  bool   `json:"discarded"`
	Active     bool   `json:"active"`
	GroupID    int    `json:"groupId"`
}

// Grouped reports whether the tab is a member of a tab group.
func (t Tab) Grouped() bool {
	return t.GroupID != GroupIDNone
}

// Group represents a browser tab group.
type Group struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Color     Color  `json:"color"`
	Collapsed bool   `json:"collapsed"`
	WindowID  int    `json:"windowId"`
	Position  int    `json:"position"`
}

// Color is one of the nine browser tab group colors.
type Color string

const (
	ColorGrey   Color = "grey"
	ColorBlue   Color = "blue"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
	ColorPink   Color = "pink"
	ColorPurple Color = "purple"
	ColorCyan   Color = "cyan"
	ColorOrange Color = "orange"
)

// Colors lists the group colors in the browser's palette order.
var Colors = []Color{
	ColorGrey, ColorBlue, ColorRed, ColorYellow, ColorGreen,
	ColorPink, ColorPurple, ColorCyan, ColorOrange,
}

var colorHex = map[Color]string{
	ColorGrey:   "#dadce0",
	ColorBlue:   "#8ab4f8",
	ColorRed:    "#f28b82",
	ColorYellow: "#fdd663",
	ColorGreen:  "#81c995",
	ColorPink:   "#ff8bcb",
	ColorPurple: "#c58af9",
	ColorCyan:   "#78d9ec",
	ColorOrange: "#fdae70",
}

// Valid reports whether c is a known group color.
func (c Color) Valid() bool {
	_, ok := colorHex[c]
	return ok
}

// Hex returns the display color for c. Unknown colors render as grey.
func (c Color) Hex() string {
	if h, ok := colorHex[c]; ok {
		return h
	}
	return colorHex[ColorGrey]
}
