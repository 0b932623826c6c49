package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	libdto "readingroom/internal/modules/library/dto"
	"readingroom/internal/ui/theme"
)

const barWidth = 24

type LibraryPort interface {
	ListDocuments(ctx context.Context) ([]libdto.DocumentOutput, error)
	GetDocument(ctx context.Context, id string) (libdto.DocumentDetailOutput, error)
}

type DocumentsLoadedMsg struct {
	Documents []libdto.DocumentOutput
	Err       error
}

type DetailLoadedMsg struct {
	Detail libdto.DocumentDetailOutput
	Err    error
}

// ProgressMsg reports a persisted progress value for one document. It is
// applied to the row and the open detail without reloading the catalog.
type ProgressMsg struct {
	DocumentID string
	Pct        float64
}

type documentItem struct {
	doc libdto.DocumentOutput
	bar string
}

func (i documentItem) Title() string { return i.doc.Title }

func (i documentItem) Description() string {
	return fmt.Sprintf("%s %3.0f%%  %s", i.bar, i.doc.Percent, i.doc.Status)
}

func (i documentItem) FilterValue() string {
	return i.doc.Title + " " + strings.Join(i.doc.Authors, " ")
}

type Model struct {
	port   LibraryPort
	list   list.Model
	bar    progress.Model
	detail libdto.DocumentDetailOutput
	err    error
	width  int
	height int
}

func New(port LibraryPort) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(theme.Lavender).BorderForeground(theme.Lavender)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(theme.Sapphire).BorderForeground(theme.Lavender)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Library"
	l.Styles.Title = theme.Title
	l.SetShowHelp(false)

	return Model{
		port: port,
		list: l,
		bar:  progress.New(progress.WithGradient(string(theme.Sapphire), string(theme.Lavender)), progress.WithWidth(barWidth), progress.WithoutPercentage()),
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadDocumentsCmd()
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.width*4/10, m.height)
		return m, nil

	case DocumentsLoadedMsg:
		m.err = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		items := make([]list.Item, len(msg.Documents))
		for i, d := range msg.Documents {
			items[i] = m.item(d)
		}
		cmd := m.list.SetItems(items)
		if len(msg.Documents) == 0 {
			return m, cmd
		}
		return m, tea.Batch(cmd, m.loadDetailCmd(m.selectedID()))

	case DetailLoadedMsg:
		if msg.Err == nil {
			m.detail = msg.Detail
		}
		return m, nil

	case ProgressMsg:
		return m, m.applyProgress(msg.DocumentID, msg.Pct)
	}

	before := m.selectedID()
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	if after := m.selectedID(); after != "" && after != before {
		cmd = tea.Batch(cmd, m.loadDetailCmd(after))
	}
	return m, cmd
}

func (m Model) View() string {
	listW := m.width * 4 / 10
	left := lipgloss.NewStyle().Width(listW).Height(m.height).Render(m.list.View())
	right := theme.Pane.Width(max(m.width-listW-2, 0)).Height(max(m.height-2, 0)).Render(m.renderDetail())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

// SelectedDocumentID returns the current selection's document ID, if any.
func (m Model) SelectedDocumentID() (string, bool) {
	id := m.selectedID()
	return id, id != ""
}

func (m Model) SelectedDocumentTitle() string {
	if item, ok := m.list.SelectedItem().(documentItem); ok {
		return item.doc.Title
	}
	return ""
}

// Filtering reports whether the list's search filter is active, so global keys
// are left to the filter input.
func (m Model) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

func (m Model) Refresh() tea.Cmd {
	return m.loadDocumentsCmd()
}

func (m Model) item(doc libdto.DocumentOutput) documentItem {
	return documentItem{doc: doc, bar: m.bar.ViewAs(doc.Percent / 100)}
}

func (m Model) selectedID() string {
	if item, ok := m.list.SelectedItem().(documentItem); ok {
		return item.doc.ID
	}
	return ""
}

func (m *Model) applyProgress(documentID string, pct float64) tea.Cmd {
	var cmds []tea.Cmd
	for i, it := range m.list.Items() {
		item, ok := it.(documentItem)
		if !ok || item.doc.ID != documentID {
			continue
		}
		item.doc.Percent = pct
		item.doc.Status = statusFor(item.doc.Status, pct)
		cmds = append(cmds, m.list.SetItem(i, m.item(item.doc)))
	}
	if m.detail.ID == documentID {
		m.detail.Percent = pct
		m.detail.Status = statusFor(m.detail.Status, pct)
	}
	return tea.Batch(cmds...)
}

func statusFor(current string, pct float64) string {
	if pct >= 100 {
		return "finished"
	}
	return current
}

func (m Model) renderDetail() string {
	if m.err != nil {
		return theme.Hot.Render("could not load library: " + m.err.Error())
	}
	d := m.detail
	if d.ID == "" {
		return theme.Muted.Render("no document selected")
	}
	rows := [][2]string{
		{"by", strings.Join(d.Authors, ", ")},
		{"kind", d.Kind},
		{"status", d.Status},
		{"source", firstNonEmpty(d.FilePath, d.URL)},
		{"tags", strings.Join(d.Tags, ", ")},
		{"note", d.NotePath},
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(d.Title) + "\n\n")
	sb.WriteString(m.bar.ViewAs(d.Percent/100) + fmt.Sprintf(" %.1f%%\n\n", d.Percent))
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		sb.WriteString(theme.Muted.Render(fmt.Sprintf("%-7s", row[0])) + row[1] + "\n")
	}
	sb.WriteString("\n" + theme.Muted.Render("enter: open in Reader"))
	return sb.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (m Model) loadDocumentsCmd() tea.Cmd {
	return func() tea.Msg {
		docs, err := m.port.ListDocuments(context.Background())
		return DocumentsLoadedMsg{Documents: docs, Err: err}
	}
}

func (m Model) loadDetailCmd(id string) tea.Cmd {
	return func() tea.Msg {
		detail, err := m.port.GetDocument(context.Background(), id)
		return DetailLoadedMsg{Detail: detail, Err: err}
	}
}
