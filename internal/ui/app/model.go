package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"readingroom/internal/modules/library/dto"
	"readingroom/internal/modules/reader/domain"
	"readingroom/internal/platform/config"
	"readingroom/internal/platform/events"
	"readingroom/internal/ui/components"
	"readingroom/internal/ui/theme"
	libraryview "readingroom/internal/ui/views/library"
	readerview "readingroom/internal/ui/views/reader"
)

// ─── ports ───────────────────────────────────────────────────────────────────

type libraryPort interface {
	ListDocuments(ctx context.Context) ([]dto.DocumentOutput, error)
	GetDocument(ctx context.Context, id string) (dto.DocumentDetailOutput, error)
}

// progressFeed delivers persisted progress changes; *events.Bus satisfies it.
type progressFeed interface {
	Subscribe(fn func(events.ProgressChanged)) func()
}

// settingsFeed delivers hot-reloaded reader settings; *config.Manager satisfies it.
type settingsFeed interface {
	OnSettingsChange(fn func(config.ReaderSettings))
}

// ─── tab index ───────────────────────────────────────────────────────────────

type tabID int

const (
	tabLibrary tabID = iota
	tabReader
	tabCount
)

var tabLabels = [tabCount]string{"Library", "Reader"}

// ─── async messages ───────────────────────────────────────────────────────────

type progressMsg events.ProgressChanged

type settingsMsg config.ReaderSettings

// ─── key bindings ─────────────────────────────────────────────────────────────

type keyMap struct {
	Tab     key.Binding
	Help    key.Binding
	Palette key.Binding
	Quit    key.Binding
	Enter   key.Binding
	Save    key.Binding
	Finish  key.Binding
	Basic   key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Palette: key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "palette")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
		Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Save:    key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "save position")),
		Finish:  key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "mark finished")),
		Basic:   key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "use basic viewer")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Help, k.Palette, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.Enter},
		{k.Save, k.Finish, k.Basic},
		{k.Help, k.Palette, k.Quit},
	}
}

// ─── model ───────────────────────────────────────────────────────────────────

// Model is the root Bubble Tea model. It owns tab routing, the global help
// overlay, and the command palette; reading and catalog browsing are delegated
// to the sub-views.
type Model struct {
	libView  libraryview.Model
	readView readerview.Model

	// feed carries bus events and settings changes into the update loop.
	feed        chan tea.Msg
	unsubscribe func()

	activeTab tabID
	keys      keyMap
	help      help.Model
	showHelp  bool
	palette   components.Palette
	status    string
	width     int
	height    int
}

// ─── constructor ─────────────────────────────────────────────────────────────

func NewModel(
	library libraryPort,
	reader readerview.Port,
	progress progressFeed,
	settings settingsFeed,
	initial config.ReaderSettings,
) Model {
	if initial.Theme != "" {
		theme.Use(initial.Theme)
	}
	feed := make(chan tea.Msg, 64)
	push := func(msg tea.Msg) {
		select {
		case feed <- msg:
		default:
		}
	}

	unsubscribe := func() {}
	if progress != nil {
		unsubscribe = progress.Subscribe(func(event events.ProgressChanged) {
			push(progressMsg(event))
		})
	}
	if settings != nil {
		settings.OnSettingsChange(func(s config.ReaderSettings) {
			push(settingsMsg(s))
		})
	}

	return Model{
		libView:     libraryview.New(library),
		readView:    readerview.New(reader, readerSettings(initial)),
		feed:        feed,
		unsubscribe: unsubscribe,
		activeTab:   tabLibrary,
		keys:        defaultKeys(),
		help:        help.New(),
		palette:     components.NewPalette(),
		status:      "ready",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.libView.Init(),
		m.readView.Init(),
		listen(m.feed),
	)
}

// Close unmounts the open document and drops event subscriptions. Call it on
// the final model after the program exits.
func (m Model) Close() {
	m.readView.Close()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// ─── update ───────────────────────────────────────────────────────────────────

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	// The palette intercepts all input while open.
	if m.palette.Visible() {
		if _, isKey := msg.(tea.KeyMsg); isKey {
			var cmd tea.Cmd
			m.palette, cmd = m.palette.Update(msg)
			return m, cmd
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.palette.SetWidth(min(m.width-4, 80))
		m.help.Width = m.width
		m.propagateSize()
		return m, nil

	case progressMsg:
		var cmd tea.Cmd
		m.libView, cmd = m.libView.Update(libraryview.ProgressMsg{DocumentID: msg.DocumentID, Pct: msg.ProgressPct})
		return m, tea.Batch(cmd, listen(m.feed))

	case settingsMsg:
		m.readView.ApplySettings(readerSettings(config.ReaderSettings(msg)))
		m.status = "settings reloaded"
		return m, listen(m.feed)

	case components.PaletteSubmitMsg:
		return m.executePalette(msg.Input)

	case components.PaletteCancelMsg:
		m.status = "ready"
		return m, nil

	// Reader results bubble up through the top level so the status bar follows.
	case readerview.MountedMsg:
		if msg.Err != nil {
			m.status = "reader: " + msg.Err.Error()
		} else {
			m.status = "reader: opened " + msg.DocumentID
		}
		var cmd tea.Cmd
		m.readView, cmd = m.readView.Update(msg)
		return m, cmd

	case readerview.SavedMsg:
		if msg.Err != nil {
			m.status = "position saved with errors: " + msg.Err.Error()
		} else {
			m.status = fmt.Sprintf("position saved (p.%d, %.0f%%)", msg.Result.Page, msg.Result.ProgressPct)
		}
		return m, nil

	case readerview.FinishedMsg:
		if msg.Err != nil {
			m.status = "mark finished failed: " + msg.Err.Error()
		} else {
			m.status = "marked finished"
		}
		return m, nil

	case readerview.FallbackMsg:
		if msg.Err != nil {
			m.status = "basic viewer: " + msg.Err.Error()
		} else {
			m.status = "switched to basic viewer"
		}
		return m, nil

	case readerview.PageSettledMsg:
		// Always routed to the reader, whichever tab is active.
		var cmd tea.Cmd
		m.readView, cmd = m.readView.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.showHelp {
			if msg.String() == "?" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}

		// Yield to the library when its search filter is active.
		if m.activeTab == tabLibrary && m.libView.Filtering() {
			break
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab + tabCount - 1) % tabCount
			return m, nil
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		case ":":
			return m, m.palette.Open()
		case "enter":
			if m.activeTab == tabLibrary {
				if id, ok := m.libView.SelectedDocumentID(); ok {
					m.activeTab = tabReader
					return m, m.readView.Open(id)
				}
			}
		case "m":
			if m.activeTab == tabReader {
				return m, m.readView.SavePosition()
			}
		case "F":
			if m.activeTab == tabReader {
				return m, m.readView.MarkFinished()
			}
		case "v":
			if m.activeTab == tabReader {
				return m, m.readView.UseBasicViewer()
			}
		}
	}

	// Non-key messages reach both views; keys only the active tab.
	var libCmd, readCmd tea.Cmd
	if _, isKey := msg.(tea.KeyMsg); !isKey || m.activeTab == tabLibrary {
		m.libView, libCmd = m.libView.Update(msg)
	}
	if _, isKey := msg.(tea.KeyMsg); !isKey || m.activeTab == tabReader {
		m.readView, readCmd = m.readView.Update(msg)
	}
	cmds = append(cmds, libCmd, readCmd)

	return m, tea.Batch(cmds...)
}

// ─── view ────────────────────────────────────────────────────────────────────

func (m Model) View() string {
	tabBar := m.renderTabBar()
	statusBar := m.renderStatusBar()
	contentH := max(1, m.height-lipgloss.Height(tabBar)-lipgloss.Height(statusBar))

	var content string
	switch {
	case m.showHelp:
		content = lipgloss.NewStyle().Width(m.width).Height(contentH).
			Render(m.help.View(m.keys))
	case m.palette.Visible():
		content = lipgloss.Place(m.width, contentH,
			lipgloss.Center, lipgloss.Center, m.palette.View())
	case m.activeTab == tabReader:
		content = m.readView.View()
	default:
		content = m.libView.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, tabBar, content, statusBar)
}

func (m Model) renderTabBar() string {
	parts := make([]string, tabCount)
	for i := tabID(0); i < tabCount; i++ {
		label := tabLabels[i]
		if i == m.activeTab {
			parts[i] = theme.Hot.Render(" " + label + " ")
		} else {
			parts[i] = theme.Muted.Render(" " + label + " ")
		}
	}
	sep := theme.Muted.Render(" │ ")
	bar := "readingroom  " + strings.Join(parts, sep)
	return lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar) + "\n"
}

func (m Model) renderStatusBar() string {
	left := m.status
	if id, ok := m.readView.Mounted(); ok {
		left = theme.Hot.Render("● "+id) + "  " + left
	}
	right := theme.Muted.Render("?:help  tab:switch  :::palette  q:quit")
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	bar := left + strings.Repeat(" ", gap) + right
	return "\n" + lipgloss.NewStyle().Background(theme.Mantle).Width(m.width).Render(bar)
}

// ─── palette execution ────────────────────────────────────────────────────────

func (m Model) executePalette(input string) (tea.Model, tea.Cmd) {
	if strings.TrimSpace(input) == "" {
		return m, nil
	}
	command := strings.Fields(input)[0]
	_, mounted := m.readView.Mounted()

	switch {
	case command == "position:save", command == "progress:finish", command == "viewer:basic":
		if !mounted {
			m.status = "no document open"
			return m, nil
		}
		m.activeTab = tabReader
		switch command {
		case "position:save":
			return m, m.readView.SavePosition()
		case "progress:finish":
			return m, m.readView.MarkFinished()
		default:
			return m, m.readView.UseBasicViewer()
		}

	case command == "reader:close":
		m.readView.Close()
		m.status = "reader closed"

	case strings.HasPrefix(command, "theme:"):
		name := strings.TrimPrefix(command, "theme:")
		if _, ok := theme.Lookup(name); !ok {
			m.status = "unknown theme: " + name
			return m, nil
		}
		settings := m.readView.Settings()
		settings.Theme = name
		m.readView.ApplySettings(settings)
		m.status = "theme: " + name

	case command == "library:refresh":
		m.status = "refreshing library"
		return m, m.libView.Refresh()

	default:
		m.status = "unknown command: " + command
	}
	return m, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func (m *Model) propagateSize() {
	sz := tea.WindowSizeMsg{Width: m.width, Height: m.height - 3}
	m.libView, _ = m.libView.Update(sz)
	m.readView, _ = m.readView.Update(sz)
}

func readerSettings(s config.ReaderSettings) domain.Settings {
	return domain.Settings{Theme: s.Theme, WrapWidth: s.WrapWidth}
}

func listen(feed <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-feed }
}
