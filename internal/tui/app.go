package tui

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/sidestack/internal/applog"
	"github.com/lotas/sidestack/internal/dnd"
	"github.com/lotas/sidestack/internal/host"
	"github.com/lotas/sidestack/internal/menu"
	"github.com/lotas/sidestack/internal/render"
	"github.com/lotas/sidestack/internal/sidebar"
)

// noticeTTL is how long a notice stays in the status line.
const noticeTTL = 4 * time.Second

// --- Messages ---

type startedMsg struct{ err error }

// refreshedMsg follows any command that changed what the controller shows.
type refreshedMsg struct{ err error }

type hostEventMsg struct{ ev host.Event }

type noticeMsg string

type noticeExpiredMsg struct{ seq int }

type animTickMsg time.Time

type dropMsg struct{ result dnd.Result }

// --- Command helpers ---

func waitEvent(ch <-chan host.Event) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return hostEventMsg{ev: ev}
	}
}

func waitNotice(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		text, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(text)
	}
}

func animTick() tea.Cmd {
	return tea.Tick(render.StaggerStep, func(t time.Time) tea.Msg { return animTickMsg(t) })
}

// --- Model ---

type overlay int

const (
	overlayNone overlay = iota
	overlayMenu
	overlaySettings
	overlaySaved
)

// Options configures the sidebar program.
type Options struct {
	Context    context.Context
	Controller *sidebar.Controller
	// Events are the host's change notifications; nil disables live updates.
	Events <-chan host.Event
	// Notices are the controller's user-facing messages.
	Notices   <-chan string
	DB        *sql.DB
	HostLabel string
}

type Model struct {
	ctx       context.Context
	ctrl      *sidebar.Controller
	events    <-chan host.Event
	notices   <-chan string
	db        *sql.DB
	hostLabel string

	// UI state
	list      ListModel
	detail    DetailModel
	search    textinput.Model
	searching bool
	overlay   overlay
	menu      MenuPicker
	settings  SettingsPicker
	saved     SavedView
	loading   bool
	err       error
	width     int
	height    int

	notice    string
	noticeSeq int

	// hoverValid is whether the row under the cursor accepts the drag.
	hoverValid bool
}

func NewModel(o Options) Model {
	ctx := o.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ti := textinput.New()
	ti.Placeholder = "Search tabs"
	ti.Prompt = "/ "
	ti.CharLimit = 200
	return Model{
		ctx:       ctx,
		ctrl:      o.Controller,
		events:    o.Events,
		notices:   o.Notices,
		db:        o.DB,
		hostLabel: o.HostLabel,
		search:    ti,
		loading:   true,
	}
}

func (m Model) Init() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	start := func() tea.Msg {
		return startedMsg{err: ctrl.Start(ctx)}
	}
	return tea.Batch(start, waitEvent(m.events), waitNotice(m.notices))
}

func (m Model) refresh() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return refreshedMsg{err: ctrl.Refresh(ctx)}
	}
}

// perform runs fn off the UI goroutine and reports back with refreshedMsg.
func (m Model) perform(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return refreshedMsg{err: fn(ctx)}
	}
}

func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeSeq++
	m.notice = text
	seq := m.noticeSeq
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return noticeExpiredMsg{seq: seq} })
}

// syncFrame pulls the controller's latest frame into the list.
func (m *Model) syncFrame() tea.Cmd {
	m.list.SetFrame(m.ctrl.Frame())
	m.syncDrag()
	if m.list.HasAnimation() {
		m.list.AnimStart = time.Now()
		return animTick()
	}
	return nil
}

// syncDrag copies the drag state into the list decorations.
func (m *Model) syncDrag() {
	src, tgt, phase := m.ctrl.Dragging()
	m.list.DragSource, m.list.DropTarget = "", ""
	if phase == dnd.Idle {
		return
	}
	for _, r := range m.list.Rows {
		switch {
		case src.Kind == dnd.SourceTab && (r.Kind == render.RowTab || r.Kind == render.RowGroupTab) && r.TabID == src.ID,
			src.Kind == dnd.SourceGroup && r.Kind == render.RowGroup && r.GroupID == src.ID:
			m.list.DragSource = rowKey(r)
		}
	}
	if r, ok := m.list.Selected(); ok && rowKey(r) != m.list.DragSource {
		m.list.DropTarget = rowKey(r)
		m.list.DropAbove = tgt.Above
		m.list.DropValid = m.hoverValid
	}
}

func (m *Model) resize() {
	m.detail.Width = m.width
	m.list.Width = m.width
	// navbar, footer (2 lines) and status line
	m.list.Height = max(m.height-4, 1)
	m.search.Width = max(m.width/3, 10)
	m.saved.SetSize(m.width, m.height-2)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case startedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err != nil {
			applog.Error("sidebar.start", msg.err)
			return m, nil
		}
		next := m.syncFrame()
		return m, next

	case refreshedMsg:
		cmd := m.syncFrame()
		if msg.err != nil {
			applog.Warn("sidebar.refresh", "error", msg.err)
		}
		return m, cmd

	case hostEventMsg:
		ctx, ctrl, ev := m.ctx, m.ctrl, msg.ev
		handle := func() tea.Msg {
			ran, err := ctrl.HandleEvent(ctx, ev)
			if !ran {
				return nil
			}
			return refreshedMsg{err: err}
		}
		return m, tea.Batch(handle, waitEvent(m.events))

	case noticeMsg:
		next := tea.Batch(m.setNotice(string(msg)), waitNotice(m.notices))
		return m, next

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case animTickMsg:
		if m.list.Animating(time.Time(msg)) {
			return m, animTick()
		}
		return m, nil

	case dropMsg:
		m.hoverValid = false
		cmd := m.syncFrame()
		if msg.result.Outcome == dnd.Failed && msg.result.Err != nil {
			applog.Warn("drop.failed", "strategy", msg.result.Strategy, "error", msg.result.Err)
		}
		return m, cmd

	case savedRestoredMsg:
		if m.overlay == overlaySaved {
			m.overlay = overlayNone
		}
		if msg.err != nil {
			next := m.setNotice(fmt.Sprintf("Restore failed: %v", msg.err))
			return m, next
		}
		next := tea.Batch(m.setNotice(fmt.Sprintf("Restored %q (%d tabs)", msg.title, msg.opened)), m.refresh())
		return m, next

	case savedLoadedMsg, savedDiffMsg, savedDeletedMsg:
		if m.overlay != overlaySaved {
			return m, nil
		}
		var cmd tea.Cmd
		m.saved, cmd = m.saved.Update(msg)
		if d, ok := msg.(savedDeletedMsg); ok && d.err == nil {
			cmd = tea.Batch(cmd, m.setNotice(fmt.Sprintf("Deleted %q", d.title)))
		}
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.overlay {
		case overlayMenu:
			return m.updateMenu(msg)
		case overlaySettings:
			return m.updateSettings(msg)
		case overlaySaved:
			var cmd tea.Cmd
			m.saved, cmd = m.saved.Update(msg)
			if m.saved.Closed {
				m.overlay = overlayNone
			}
			return m, cmd
		}
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.ctrl.Search("")
		next := m.syncFrame()
		return m, next
	case "enter", "down", "up":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.ctrl.Search(m.search.Value())
	next := tea.Batch(cmd, m.syncFrame())
	return m, next
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.menu.MoveUp()
	case "down", "j":
		m.menu.MoveDown()
	case "esc", "q", "m":
		m.overlay = overlayNone
	case "enter":
		opt, ok := m.menu.Selected()
		if !ok {
			return m, nil
		}
		if opt.Disabled {
			next := m.setNotice(opt.Label + " is not available here")
			return m, next
		}
		m.overlay = overlayNone
		ctrl := m.ctrl
		return m, m.perform(func(ctx context.Context) error { return ctrl.Run(ctx, opt) })
	}
	return m, nil
}

func (m Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.settings.MoveUp()
	case "down", "j":
		m.settings.MoveDown()
	case "esc", "q", "s":
		m.overlay = overlayNone
	case "enter", " ":
		s := m.settings.Toggle()
		ctrl := m.ctrl
		return m, m.perform(func(ctx context.Context) error { return ctrl.SaveSettings(ctx, s) })
	}
	return m, nil
}

func (m Model) dragging() bool {
	_, _, phase := m.ctrl.Dragging()
	return phase != dnd.Idle
}

// hover moves the drop target to the row under the cursor.
func (m *Model) hover(above bool) {
	if r, ok := m.list.Selected(); ok {
		m.hoverValid = m.ctrl.HoverRow(r, above)
	}
	m.syncDrag()
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	row, hasRow := m.list.Selected()

	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "up", "k":
		if m.list.MoveUp() && m.dragging() {
			m.hover(true)
		}
	case "down", "j":
		if m.list.MoveDown() && m.dragging() {
			m.hover(false)
		}

	case "enter":
		if m.dragging() {
			ctx, ctrl := m.ctx, m.ctrl
			return m, func() tea.Msg { return dropMsg{result: ctrl.Drop(ctx)} }
		}
		if !hasRow {
			return m, nil
		}
		ctrl := m.ctrl
		switch row.Kind {
		case render.RowNewTab:
			return m, m.perform(ctrl.NewTab)
		case render.RowTab, render.RowGroupTab:
			id := row.TabID
			return m, m.perform(func(ctx context.Context) error { return ctrl.Activate(ctx, id) })
		case render.RowGroup:
			m.ctrl.ToggleGroup(row.GroupID)
			next := m.syncFrame()
			return m, next
		}

	case " ":
		if hasRow && row.Kind == render.RowGroup {
			m.ctrl.ToggleGroup(row.GroupID)
			next := m.syncFrame()
			return m, next
		}
	case "h", "left":
		if hasRow && row.Kind == render.RowGroup && row.Expanded {
			m.ctrl.ToggleGroup(row.GroupID)
			next := m.syncFrame()
			return m, next
		}
	case "l", "right":
		if hasRow && row.Kind == render.RowGroup && !row.Expanded {
			m.ctrl.ToggleGroup(row.GroupID)
			next := m.syncFrame()
			return m, next
		}

	case "/":
		m.searching = true
		next := m.search.Focus()
		return m, next

	case "esc":
		if m.dragging() {
			m.ctrl.CancelDrag()
			m.hoverValid = false
			m.syncDrag()
			return m, nil
		}
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.ctrl.Search("")
			next := m.syncFrame()
			return m, next
		}

	case "m":
		if !hasRow {
			return m, nil
		}
		var opts []menu.Option
		var ok bool
		switch row.Kind {
		case render.RowTab, render.RowGroupTab:
			opts, ok = m.ctrl.TabMenu(row.TabID)
		case render.RowGroup:
			opts, ok = m.ctrl.GroupMenu(row.GroupID)
		}
		if !ok {
			return m, nil
		}
		m.menu = NewMenuPicker(row.Title, opts)
		m.overlay = overlayMenu

	case "p":
		if hasRow && (row.Kind == render.RowTab || row.Kind == render.RowGroupTab) {
			id, ctrl := row.TabID, m.ctrl
			return m, m.perform(func(ctx context.Context) error { return ctrl.TogglePin(ctx, id) })
		}

	case "d":
		if !hasRow || m.dragging() {
			return m, nil
		}
		var src dnd.Source
		switch row.Kind {
		case render.RowTab, render.RowGroupTab:
			src = dnd.Tab(row.TabID)
		case render.RowGroup:
			src = dnd.Group(row.GroupID)
		default:
			return m, nil
		}
		if m.ctrl.StartDrag(src) {
			m.hoverValid = false
			m.syncDrag()
			next := m.setNotice("Dragging: j/k to aim, enter to drop, esc to cancel")
			return m, next
		}

	case "s":
		m.settings = NewSettingsPicker(m.ctrl.Settings())
		m.overlay = overlaySettings

	case "o":
		if m.db == nil {
			next := m.setNotice("Saved groups need a database")
			return m, next
		}
		env := m.ctrl.Env()
		m.saved = NewSavedView(m.ctx, m.db, env.Host, env.WindowID, m.ctrl.Tabs())
		m.saved.SetSize(m.width, m.height-2)
		m.overlay = overlaySaved
		return m, m.saved.Init()

	case "r":
		return m, m.refresh()
	}
	return m, nil
}

func (m Model) View() string {
	if m.loading {
		return "\n  Loading tabs...\n"
	}
	if m.err != nil {
		return fmt.Sprintf("\n  Error: %v\n\n  Press 'q' to quit.\n", m.err)
	}

	switch m.overlay {
	case overlayMenu:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.menu.View())
	case overlaySettings:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.settings.View())
	case overlaySaved:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.saved.View())
	}

	var search string
	if m.searching || m.search.Value() != "" {
		search = m.search.View()
	}
	var tabs, groups int
	for _, r := range m.list.Rows {
		switch r.Kind {
		case render.RowTab:
			tabs++
		case render.RowGroup:
			groups++
			tabs += r.Count
		}
	}
	top := renderNavbar(m.hostLabel, tabs, groups, search, m.width)

	body := lipgloss.NewStyle().Height(m.list.Height).Render(m.list.View(time.Now()))

	row, ok := m.list.Selected()
	footer := lipgloss.NewStyle().Height(2).Render(m.detail.ViewRow(row, ok, m.ctrl.Tabs()))

	statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	status := statusStyle.Render(" ↑↓ move · enter open · / search · m menu · d drag · p pin · o saved · s settings · q quit")
	if m.notice != "" {
		status = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true).Render(" " + m.notice)
	}

	return lipgloss.JoinVertical(lipgloss.Left, top, body, footer, status)
}
