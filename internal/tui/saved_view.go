package tui

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/snapshot"
	"github.com/lotas/sidestack/internal/storage"
	"github.com/lotas/sidestack/internal/types"
)

type savedLoadedMsg struct {
	groups []storage.SavedGroupSummary
	err    error
}

type savedDiffMsg struct {
	text string
	err  error
}

type savedRestoredMsg struct {
	title  string
	opened int
	err    error
}

type savedDeletedMsg struct {
	title string
	err   error
}

// SavedView lists saved groups and restores, compares or deletes them.
type SavedView struct {
	ctx      context.Context
	db       *sql.DB
	host     host.Host
	windowID int
	tabs     []types.Tab

	groups  []storage.SavedGroupSummary
	cursor  int
	offset  int
	width   int
	height  int
	loading bool
	err     error

	// diff is the comparison shown instead of the list, if any.
	diff string
	// Closed is set once the user leaves the view.
	Closed bool
}

// NewSavedView returns a view over db. tabs are the window's open tabs and
// are what a diff compares against.
func NewSavedView(ctx context.Context, db *sql.DB, h host.Host, windowID int, tabs []types.Tab) SavedView {
	return SavedView{ctx: ctx, db: db, host: h, windowID: windowID, tabs: tabs, loading: true}
}

func (v SavedView) Init() tea.Cmd {
	return v.load()
}

func (v SavedView) load() tea.Cmd {
	db := v.db
	return func() tea.Msg {
		groups, err := storage.ListSavedGroups(db)
		return savedLoadedMsg{groups: groups, err: err}
	}
}

func (v SavedView) selected() (storage.SavedGroupSummary, bool) {
	if v.cursor < 0 || v.cursor >= len(v.groups) {
		return storage.SavedGroupSummary{}, false
	}
	return v.groups[v.cursor], true
}

func (v SavedView) restore(g storage.SavedGroupSummary) tea.Cmd {
	ctx, h, db, wid := v.ctx, v.host, v.db, v.windowID
	return func() tea.Msg {
		n, err := snapshot.Restore(ctx, h, db, wid, g.ID)
		return savedRestoredMsg{title: g.Title, opened: n, err: err}
	}
}

func (v SavedView) compare(g storage.SavedGroupSummary) tea.Cmd {
	db, tabs := v.db, v.tabs
	return func() tea.Msg {
		saved, err := storage.GetSavedGroup(db, g.ID)
		if err != nil {
			return savedDiffMsg{err: err}
		}
		return savedDiffMsg{text: snapshot.FormatDiff(snapshot.Diff(saved, tabs))}
	}
}

func (v SavedView) remove(g storage.SavedGroupSummary) tea.Cmd {
	db := v.db
	return func() tea.Msg {
		return savedDeletedMsg{title: g.Title, err: storage.DeleteSavedGroup(db, g.ID)}
	}
}

func (v *SavedView) SetSize(w, h int) {
	v.width = w
	v.height = h
}

func (v SavedView) Update(msg tea.Msg) (SavedView, tea.Cmd) {
	switch msg := msg.(type) {
	case savedLoadedMsg:
		v.loading = false
		v.err = msg.err
		v.groups = msg.groups
		if v.cursor >= len(v.groups) {
			v.cursor = max(len(v.groups)-1, 0)
		}
		return v, nil

	case savedDiffMsg:
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		v.diff = msg.text
		return v, nil

	case savedDeletedMsg:
		if msg.err != nil {
			v.err = msg.err
			return v, nil
		}
		return v, v.load()

	case tea.KeyMsg:
		if v.diff != "" {
			switch msg.String() {
			case "esc", "q", "v", "enter":
				v.diff = ""
			}
			return v, nil
		}
		switch msg.String() {
		case "j", "down":
			if v.cursor < len(v.groups)-1 {
				v.cursor++
				v.adjustOffset()
			}
		case "k", "up":
			if v.cursor > 0 {
				v.cursor--
				v.adjustOffset()
			}
		case "enter":
			if g, ok := v.selected(); ok {
				v.Closed = true
				return v, v.restore(g)
			}
		case "v":
			if g, ok := v.selected(); ok {
				return v, v.compare(g)
			}
		case "x":
			if g, ok := v.selected(); ok {
				return v, v.remove(g)
			}
		case "esc", "q", "o":
			v.Closed = true
		}
	}
	return v, nil
}

func (v *SavedView) adjustOffset() {
	if v.cursor < v.offset {
		v.offset = v.cursor
	}
	visible := v.height - 4
	if visible < 1 {
		visible = 1
	}
	if v.cursor >= v.offset+visible {
		v.offset = v.cursor - visible + 1
	}
}

func (v SavedView) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)
	titleStyle := lipgloss.NewStyle().Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	if v.diff != "" {
		return boxStyle.Render(strings.TrimRight(v.diff, "\n") + "\n\n" + dimStyle.Render("esc back"))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Saved groups") + "\n\n")
	switch {
	case v.loading:
		b.WriteString("Loading saved groups...")
	case v.err != nil:
		b.WriteString(fmt.Sprintf("Error: %v", v.err))
	case len(v.groups) == 0:
		b.WriteString("No saved groups yet.")
	default:
		cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
		visible := max(v.height-4, 1)
		end := min(v.offset+visible, len(v.groups))
		for i := v.offset; i < end; i++ {
			g := v.groups[i]
			color := lipgloss.NewStyle().Foreground(lipgloss.Color(types.Color(g.Color).Hex())).Render("●")
			line := fmt.Sprintf("%s  %s  (%d tabs)", g.CreatedAt.Local().Format("2006-01-02 15:04"), g.Title, g.TabCount)
			if i == v.cursor {
				line = cursorStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(color + " " + line)
			if i < end-1 {
				b.WriteString("\n")
			}
		}
	}
	b.WriteString("\n\n" + dimStyle.Render("enter restore · v compare · x delete · esc close"))
	return boxStyle.Render(b.String())
}
