package render

// Theme modes accepted in settings.
const (
	ModeLight  = "light"
	ModeDark   = "dark"
	ModeSystem = "system"
)

// Theme is the resolved appearance of a frame.
type Theme struct {
	Mode    string // as configured
	Dark    bool   // effective
	Compact bool
	Accent  string // hex
}

// ResolveTheme maps a configured mode to an effective theme. "system" and
// unknown modes follow the terminal background.
func ResolveTheme(mode string, systemDark, compact bool, accent string) Theme {
	t := Theme{Mode: mode, Compact: compact, Accent: accent}
	switch mode {
	case ModeLight:
		t.Dark = false
	case ModeDark:
		t.Dark = true
	default:
		t.Mode = ModeSystem
		t.Dark = systemDark
	}
	return t
}
