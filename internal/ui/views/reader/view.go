package reader

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"readingroom/internal/modules/reader/domain"
	readerdto "readingroom/internal/modules/reader/dto"
	readerin "readingroom/internal/modules/reader/port/in"
	"readingroom/internal/ui/theme"
)

const refreshInterval = 250 * time.Millisecond

// ─── port ────────────────────────────────────────────────────────────────────

// Port is the minimal interface this view needs from the reader use-case.
type Port interface {
	Mount(ctx context.Context, input readerdto.MountInput) (readerin.ReadingView, error)
}

// ─── messages ────────────────────────────────────────────────────────────────

// MountedMsg is sent when a document has been mounted (or failed to mount).
type MountedMsg struct {
	mountID    int
	DocumentID string
	View       readerin.ReadingView
	Err        error
}

// PageSettledMsg reports a page that finished rendering or failed.
type PageSettledMsg struct {
	Page  int
	State domain.PageState
}

type SavedMsg struct {
	Result readerdto.SavedPosition
	Err    error
}

type FinishedMsg struct{ Err error }

type FallbackMsg struct{ Err error }

type refreshMsg struct{ mountID int }

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the Reader tab. It owns one mounted reading view at a time and the
// scroll container that view measures.
type Model struct {
	port     Port
	view     readerin.ReadingView
	surface  *surface
	pages    chan PageSettledMsg
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	snapshot readerdto.Snapshot
	settings domain.Settings
	mountID  int
	mounting bool
	err      error
	width    int
	height   int
}

// New creates a Reader Model backed by the given port.
func New(port Port, settings domain.Settings) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Lavender)

	m := Model{
		port:     port,
		surface:  newSurface(),
		pages:    make(chan PageSettledMsg, 64),
		viewport: viewport.New(0, 0),
		spinner:  sp,
		settings: settings,
	}
	m.rebuildRenderer()
	return m
}

func (m Model) Init() tea.Cmd {
	return listenPages(m.pages)
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.relayout()

	case MountedMsg:
		if msg.mountID != m.mountID {
			if msg.View != nil {
				msg.View.Unmount()
			}
			return m, nil
		}
		m.mounting = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.view = msg.View
		m.viewport.GotoTop()
		m.relayout()
		m.view.SurfaceReady()
		m.relayout()
		return m, m.refreshCmd()

	case PageSettledMsg:
		m.relayout()
		return m, listenPages(m.pages)

	case refreshMsg:
		if msg.mountID != m.mountID || m.view == nil {
			return m, nil
		}
		m.relayout()
		return m, m.refreshCmd()

	case spinner.TickMsg:
		if m.mounting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	before := m.viewport.YOffset
	var vCmd tea.Cmd
	m.viewport, vCmd = m.viewport.Update(msg)
	cmds = append(cmds, vCmd)
	if m.view != nil && m.viewport.YOffset != before {
		m.surface.scrolled(m.viewport.YOffset, m.viewport.Height)
		m.view.Scrolled(time.Now())
	}

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	header := m.renderHeader()
	if m.mounting {
		body := lipgloss.Place(m.width, max(1, m.height-lipgloss.Height(header)), lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" Opening document…")
		return lipgloss.JoinVertical(lipgloss.Left, header, body)
	}
	if m.err != nil {
		return lipgloss.JoinVertical(lipgloss.Left, header, theme.Hot.Render("Error: "+m.err.Error()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), m.renderStatus())
}

// Open unmounts the current document and mounts documentID. The returned Cmd
// produces a MountedMsg.
func (m *Model) Open(documentID string) tea.Cmd {
	m.unmount()
	m.mountID++
	m.mounting = true
	m.err = nil
	m.surface = newSurface()
	return tea.Batch(m.mountCmd(m.mountID, documentID, m.surface), m.spinner.Tick)
}

// Close unmounts the current document, if any.
func (m *Model) Close() {
	m.unmount()
	m.mountID++
	m.mounting = false
	m.viewport.SetContent("")
}

// Mounted reports the document currently shown.
func (m Model) Mounted() (string, bool) {
	if m.view == nil {
		return "", false
	}
	return m.snapshot.DocumentID, true
}

func (m Model) SavePosition() tea.Cmd {
	view := m.view
	if view == nil {
		return nil
	}
	return func() tea.Msg {
		result, err := view.SavePosition(context.Background())
		return SavedMsg{Result: result, Err: err}
	}
}

func (m Model) MarkFinished() tea.Cmd {
	view := m.view
	if view == nil {
		return nil
	}
	return func() tea.Msg {
		return FinishedMsg{Err: view.MarkFinished(context.Background())}
	}
}

func (m Model) UseBasicViewer() tea.Cmd {
	view := m.view
	if view == nil {
		return nil
	}
	return func() tea.Msg {
		return FallbackMsg{Err: view.UseBasicViewer(context.Background())}
	}
}

func (m Model) Settings() domain.Settings { return m.settings }

// ApplySettings changes presentation only; progress is unaffected.
func (m *Model) ApplySettings(settings domain.Settings) {
	m.settings = settings
	if settings.Theme != "" {
		theme.Use(settings.Theme)
	}
	m.rebuildRenderer()
	if m.view != nil {
		m.view.ApplySettings(settings)
	}
	m.relayout()
}

// ─── private ─────────────────────────────────────────────────────────────────

func (m *Model) unmount() {
	if m.view != nil {
		m.view.Unmount()
		m.view = nil
	}
	m.snapshot = readerdto.Snapshot{}
}

func (m *Model) resize() {
	m.viewport.Width = m.width
	// header + status line
	m.viewport.Height = max(1, m.height-3)
	m.rebuildRenderer()
}

func (m *Model) rebuildRenderer() {
	wrap := m.width
	if m.settings.WrapWidth > 0 && (wrap == 0 || m.settings.WrapWidth < wrap) {
		wrap = m.settings.WrapWidth
	}
	if r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(theme.Current()),
		glamour.WithWordWrap(wrap),
	); err == nil {
		m.renderer = r
	}
}

// relayout redraws every page at its final height, loaded or not, so offsets
// stay stable while pages render.
func (m *Model) relayout() {
	if m.view == nil {
		return
	}
	m.snapshot = m.view.Snapshot()
	if m.snapshot.Mode == domain.ModeFallback {
		m.viewport.SetContent(m.fallbackNotice())
		m.surface.layout(nil, 0)
		m.surface.scrolled(0, 0)
		return
	}

	var content strings.Builder
	bounds := make([]domain.PageBounds, 0, m.snapshot.PageCount)
	row := 0
	for n := 1; n <= m.snapshot.PageCount; n++ {
		lines := m.pageLines(m.view.Page(n))
		top := row
		row += len(lines)
		bounds = append(bounds, domain.PageBounds{
			Number: n,
			Top:    float64(top) * domain.RowHeight,
			Bottom: float64(row) * domain.RowHeight,
		})
		for _, line := range lines {
			content.WriteString(line)
			content.WriteByte('\n')
		}
	}
	m.viewport.SetContent(strings.TrimSuffix(content.String(), "\n"))
	m.surface.layout(bounds, row)
	if offset, ok := m.surface.takePending(); ok {
		m.viewport.SetYOffset(int(math.Round(offset / domain.RowHeight)))
	}
	m.surface.scrolled(m.viewport.YOffset, m.viewport.Height)
}

func (m Model) pageLines(page readerdto.PageView) []string {
	lines := make([]string, 0, page.Rows+1)
	lines = append(lines, theme.Muted.Render(fmt.Sprintf("── page %d ──", page.Number)))
	switch page.State {
	case domain.PageReady:
		clip := lipgloss.NewStyle().MaxWidth(max(1, m.width))
		for _, line := range page.Lines {
			lines = append(lines, clip.Render(line))
		}
	case domain.PageFailed:
		lines = append(lines, theme.Hot.Render(fmt.Sprintf("page %d could not be rendered", page.Number)))
	default:
		lines = append(lines, theme.Muted.Render(fmt.Sprintf("loading page %d…", page.Number)))
	}
	for len(lines) < page.Rows+1 {
		lines = append(lines, "")
	}
	return lines
}

func (m Model) fallbackNotice() string {
	var md strings.Builder
	md.WriteString("## Basic viewer\n\n")
	if m.snapshot.LoadError != "" {
		md.WriteString("This document could not be rendered here and was opened in a basic viewer.\n\n")
		md.WriteString("> " + m.snapshot.LoadError + "\n\n")
	} else {
		md.WriteString("This document is open in a basic viewer.\n\n")
	}
	md.WriteString("Progress follows the viewer's scroll reports when it sends them, ")
	md.WriteString("otherwise it is estimated from reading time and shown with `~`.\n\n")
	md.WriteString("Source: `" + m.snapshot.SourceURL + "`\n")
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(md.String()); err == nil {
			return rendered
		}
	}
	return md.String()
}

func (m Model) renderHeader() string {
	if m.view == nil && !m.mounting {
		return theme.Title.Render("Reader") +
			theme.Muted.Render("  Open a document from the Library tab (enter)") + "\n"
	}
	s := m.snapshot
	parts := []string{theme.Title.Render(s.Title)}
	if s.Byline != "" {
		parts = append(parts, theme.Muted.Render(s.Byline))
	}
	return strings.Join(parts, "  ") + "\n"
}

func (m Model) renderStatus() string {
	s := m.snapshot
	parts := []string{
		theme.Muted.Render("[" + modeLabel(s.Mode) + "]"),
		theme.Muted.Render(s.State.String()),
	}
	if s.PageCount > 0 && s.Mode == domain.ModePrimary {
		parts = append(parts, theme.Muted.Render(fmt.Sprintf("p.%d/%d", max(1, s.CurrentPage), s.PageCount)))
	}
	if s.Estimated {
		parts = append(parts, theme.Muted.Render(fmt.Sprintf("~%.0f%%", s.EstimatedPct)))
	} else {
		parts = append(parts, theme.Good.Render(fmt.Sprintf("%.0f%%", s.ProgressPct)))
	}
	if s.SyncPending {
		parts = append(parts, theme.Muted.Render("saving…"))
	}
	if s.SaveFailed {
		parts = append(parts, theme.Hot.Render("could not save"))
	}
	return strings.Join(parts, "  ")
}

func modeLabel(mode domain.RenderMode) string {
	if mode == domain.ModeFallback {
		return "basic viewer"
	}
	return "pages"
}

func (m Model) mountCmd(mountID int, documentID string, target *surface) tea.Cmd {
	pages := m.pages
	settings := m.settings
	return func() tea.Msg {
		view, err := m.port.Mount(context.Background(), readerdto.MountInput{
			DocumentID: documentID,
			Viewport:   target,
			Settings:   settings,
			OnPageReady: func(page int, state domain.PageState) {
				select {
				case pages <- PageSettledMsg{Page: page, State: state}:
				default:
				}
			},
		})
		return MountedMsg{mountID: mountID, DocumentID: documentID, View: view, Err: err}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	id := m.mountID
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshMsg{mountID: id} })
}

func listenPages(pages <-chan PageSettledMsg) tea.Cmd {
	return func() tea.Msg { return <-pages }
}
