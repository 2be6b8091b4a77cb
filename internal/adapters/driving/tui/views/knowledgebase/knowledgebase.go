// Package knowledgebase provides the source listing view for the TUI.
package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/keymap"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/messages"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/styles"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// ErrNoKnowledgeBase indicates that no knowledge base service was provided.
var ErrNoKnowledgeBase = errors.New("knowledge base service not available")

// View pages through the ingested sources.
type View struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	kb     driving.KnowledgeBaseService
	ctx    context.Context

	page     domain.SourcePage
	pageNum  int
	pageSize int
	selected int
	notice   string
	width    int
	height   int
	ready    bool
	err      error
	loading  bool
}

// NewView creates a new knowledge base view.
func NewView(s *styles.Styles, km *keymap.KeyMap, kb driving.KnowledgeBaseService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:   s,
		keymap:   km,
		kb:       kb,
		ctx:      context.Background(),
		pageNum:  1,
		pageSize: domain.DefaultPageSize,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the current page.
func (v *View) Init() tea.Cmd {
	v.loading = true
	return v.loadPage(v.pageNum)
}

// loadPage returns a command that loads one page of sources.
func (v *View) loadPage(page int) tea.Cmd {
	kb, ctx, size := v.kb, v.ctx, v.pageSize
	return func() tea.Msg {
		if kb == nil {
			return messages.SourcesLoaded{Err: ErrNoKnowledgeBase}
		}
		p, err := kb.Page(ctx, page, size)
		return messages.SourcesLoaded{Page: p, Err: err}
	}
}

// deleteSource returns a command that removes a source.
func (v *View) deleteSource(id string) tea.Cmd {
	kb, ctx := v.kb, v.ctx
	return func() tea.Msg {
		if kb == nil {
			return messages.SourceRemoved{DocumentID: id, Err: ErrNoKnowledgeBase}
		}
		n, err := kb.DeleteSource(ctx, id)
		return messages.SourceRemoved{DocumentID: id, Removed: n, Err: err}
	}
}

// Update handles messages for the knowledge base view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.SourcesLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.page = msg.Page
		v.pageNum = msg.Page.Page
		v.selected = min(v.selected, max(len(msg.Page.Entries)-1, 0))
		return v, nil

	case messages.SourceRemoved:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.notice = fmt.Sprintf("Removed %d documents", msg.Removed)
		v.loading = true
		return v, v.loadPage(v.pageNum)
	}

	return v, nil
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	key := msg.String()
	entries := v.page.Entries

	switch {
	case keymap.Matches(key, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	case keymap.Matches(key, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
		}
	case keymap.Matches(key, v.keymap.Down):
		if v.selected < len(entries)-1 {
			v.selected++
		}
	case keymap.Matches(key, v.keymap.Select):
		if v.selected < len(entries) {
			e := entries[v.selected]
			return v, func() tea.Msg {
				return messages.DocumentSelected{DocumentID: e.ID, Title: e.Name}
			}
		}
	case keymap.Matches(key, v.keymap.NextPage):
		if v.pageNum < v.page.TotalPages {
			v.selected = 0
			v.loading = true
			return v, v.loadPage(v.pageNum + 1)
		}
	case keymap.Matches(key, v.keymap.PrevPage):
		if v.pageNum > 1 {
			v.selected = 0
			v.loading = true
			return v, v.loadPage(v.pageNum - 1)
		}
	case keymap.Matches(key, v.keymap.Delete):
		if v.selected < len(entries) {
			return v, v.deleteSource(entries[v.selected].ID)
		}
	case keymap.Matches(key, v.keymap.Reload):
		v.loading = true
		v.notice = ""
		return v, v.loadPage(v.pageNum)
	}

	return v, nil
}

// View renders the knowledge base view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Knowledge Base"))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading sources..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
	case v.page.Total == 0:
		b.WriteString(v.styles.Muted.Render("The knowledge base is empty. Run 'thinkrag ingest' to add documents."))
	default:
		for i := range v.page.Entries {
			b.WriteString(v.renderEntry(i, &v.page.Entries[i]))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("Page %d of %d, %d sources",
			v.page.Page, v.page.TotalPages, v.page.Total)))
	}
	b.WriteString("\n")

	if v.notice != "" {
		b.WriteString(v.styles.Success.Render(v.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(v.renderHelp())
	return b.String()
}

// renderEntry renders a single source line.
func (v *View) renderEntry(index int, e *domain.SourceEntry) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	// Format: > [type] name  date
	typeStr := fmt.Sprintf("[%s]", e.Type)
	name := e.Name
	if name == "" {
		name = e.ID
	}
	if e.Documents > 1 {
		name = fmt.Sprintf("%s (%d documents)", name, e.Documents)
	}
	name = domain.Truncate(name, max(v.width-len(typeStr)-30, 10))
	added := e.CreatedAt.Local().Format("2006-01-02 15:04")

	if index == v.selected {
		return v.styles.Selected.Render(fmt.Sprintf("%s%-8s %s  %s", indicator, typeStr, name, added))
	}
	return v.styles.Normal.Render(indicator) +
		v.styles.Subtitle.Render(fmt.Sprintf("%-8s ", typeStr)) +
		v.styles.Normal.Render(name+"  ") +
		v.styles.Muted.Render(added)
}

// renderHelp renders the help footer.
func (v *View) renderHelp() string {
	bindings := v.keymap.KnowledgeBaseHelp()
	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("[%s] %s", h.Key, h.Desc))
	}
	return v.styles.Help.Render(strings.Join(hints, "  "))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Page returns the loaded page.
func (v *View) Page() domain.SourcePage {
	return v.page
}

// SelectedIndex returns the currently selected entry index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
