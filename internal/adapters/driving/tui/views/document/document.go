// Package document provides the document text view for the TUI.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/messages"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/styles"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// ErrNoKnowledgeBase indicates that no knowledge base service was provided.
var ErrNoKnowledgeBase = errors.New("knowledge base service not available")

// View shows the text of one document.
type View struct {
	styles *styles.Styles
	kb     driving.KnowledgeBaseService
	ctx    context.Context

	documentID   string
	title        string
	returnTo     messages.ViewType
	document     *domain.Document
	lines        []string
	scrollOffset int
	width        int
	height       int
	ready        bool
	err          error
	loading      bool
}

// NewView creates a new document view.
func NewView(s *styles.Styles, kb driving.KnowledgeBaseService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles:   s,
		kb:       kb,
		ctx:      context.Background(),
		returnTo: messages.ViewMenu,
		width:    80,
		height:   24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Open starts loading a document. Esc returns to returnTo.
func (v *View) Open(documentID, title string, returnTo messages.ViewType) tea.Cmd {
	v.documentID = documentID
	v.title = title
	v.returnTo = returnTo
	v.document = nil
	v.lines = nil
	v.scrollOffset = 0
	v.err = nil
	v.loading = true

	kb, ctx := v.kb, v.ctx
	return func() tea.Msg {
		if kb == nil {
			return messages.DocumentContentLoaded{DocumentID: documentID, Err: ErrNoKnowledgeBase}
		}
		doc, err := kb.Get(ctx, documentID)
		return messages.DocumentContentLoaded{DocumentID: documentID, Document: doc, Err: err}
	}
}

// Update handles messages for the document view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentContentLoaded:
		if msg.DocumentID != v.documentID {
			return v, nil // stale
		}
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.err = nil
		v.document = msg.Document
		v.wrapContent()
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "pgup", "ctrl+u":
		v.scrollOffset = max(v.scrollOffset-v.visibleLines(), 0)
	case "pgdown", "ctrl+d":
		v.scrollOffset = min(v.scrollOffset+v.visibleLines(), v.maxScrollOffset())
	case "home", "g":
		v.scrollOffset = 0
	case "end", "G":
		v.scrollOffset = v.maxScrollOffset()
	case "esc":
		back := v.returnTo
		return v, func() tea.Msg {
			return messages.ViewChanged{View: back}
		}
	}

	return v, nil
}

// wrapContent wraps the document text to fit the view width.
func (v *View) wrapContent() {
	v.lines = nil
	if v.document == nil || v.document.Content == "" {
		return
	}

	width := max(v.width-4, 20)
	for _, line := range strings.Split(v.document.Content, "\n") {
		r := []rune(line)
		for len(r) > width {
			v.lines = append(v.lines, string(r[:width]))
			r = r[width:]
		}
		v.lines = append(v.lines, string(r))
	}
	v.scrollOffset = min(v.scrollOffset, v.maxScrollOffset())
}

// visibleLines returns the number of lines that can be displayed.
func (v *View) visibleLines() int {
	// Title, details, separator, position and help
	return max(v.height-8, 1)
}

func (v *View) maxScrollOffset() int {
	return max(len(v.lines)-v.visibleLines(), 0)
}

// View renders the document view.
func (v *View) View() string {
	var b strings.Builder

	title := v.title
	if v.document != nil {
		title = v.document.Name()
	}
	if title == "" {
		title = v.documentID
	}
	b.WriteString(v.styles.Title.Render(title))
	b.WriteString("\n")
	if d := v.document; d != nil {
		details := d.FileType
		if d.URI != "" {
			details += "  " + d.URI
		}
		b.WriteString(v.styles.Muted.Render(details))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("─", min(max(v.width-4, 1), 60)))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading document..."))
		b.WriteString("\n\n")
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
	case len(v.lines) == 0:
		b.WriteString(v.styles.Muted.Render("(No content)"))
		b.WriteString("\n\n")
	default:
		visible := v.visibleLines()
		end := min(v.scrollOffset+visible, len(v.lines))
		for i := v.scrollOffset; i < end; i++ {
			b.WriteString(v.styles.Normal.Render(v.lines[i]))
			b.WriteString("\n")
		}
		if len(v.lines) > visible {
			percentage := v.scrollOffset * 100 / v.maxScrollOffset()
			b.WriteString("\n")
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d%%] Line %d-%d of %d",
				percentage, v.scrollOffset+1, end, len(v.lines))))
		}
		b.WriteString("\n\n")
	}

	b.WriteString(v.styles.Help.Render("[↑/↓/PgUp/PgDn] scroll  [g/G] top/bottom  [esc] back"))
	return b.String()
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.wrapContent()
}

// Document returns the loaded document.
func (v *View) Document() *domain.Document {
	return v.document
}

// ScrollOffset returns the first visible line.
func (v *View) ScrollOffset() int {
	return v.scrollOffset
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
