// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/tui/styles"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// CitationList displays the sources of an answer in a navigable list.
type CitationList struct {
	citations []domain.Citation
	selected  int
	styles    *styles.Styles
	width     int
	height    int
}

// NewCitationList creates an empty citation list.
func NewCitationList(s *styles.Styles) *CitationList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &CitationList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the citation list.
func (c *CitationList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (c *CitationList) Update(msg tea.Msg) (*CitationList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			c.MoveUp()
		case "down", "j":
			c.MoveDown()
		}
	}
	return c, nil
}

// View renders the citation list.
func (c *CitationList) View() string {
	if len(c.citations) == 0 {
		return c.styles.Muted.Render("No sources")
	}

	lines := make([]string, 0, len(c.citations)*2+1)
	lines = append(lines, c.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(c.citations))))

	// Each citation takes two lines.
	visible := max((c.height-1)/2, 1)
	start := 0
	if c.selected >= visible {
		start = c.selected - visible + 1
	}
	end := min(start+visible, len(c.citations))

	for i := start; i < end; i++ {
		lines = append(lines, c.renderCitation(i, &c.citations[i]))
	}
	return strings.Join(lines, "\n")
}

func (c *CitationList) renderCitation(index int, cit *domain.Citation) string {
	indicator := "  "
	if index == c.selected {
		indicator = "> "
	}

	page := cit.PageLabel
	if page == "" {
		page = domain.NotAvailable
	}
	head := fmt.Sprintf("%s[%d] %s (page %s)", indicator, index+1, cit.Source, page)
	score := fmt.Sprintf("%.2f", cit.Score)

	var titleLine string
	if index == c.selected {
		titleLine = c.styles.Selected.Render(head + "  " + score)
	} else {
		titleLine = c.styles.Normal.Render(head+"  ") + c.styles.Muted.Render(score)
	}

	preview := domain.Truncate(cit.Snippet, max(c.width-10, domain.PreviewLength))
	return titleLine + "\n" + c.styles.Citation.Render("    "+preview)
}

// SetCitations replaces the list and resets the selection.
func (c *CitationList) SetCitations(citations []domain.Citation) {
	c.citations = citations
	c.selected = 0
}

// Citations returns the current citations.
func (c *CitationList) Citations() []domain.Citation {
	return c.citations
}

// Selected returns the index of the selected citation.
func (c *CitationList) Selected() int {
	return c.selected
}

// SelectedCitation returns the selected citation, or nil when the list is empty.
func (c *CitationList) SelectedCitation() *domain.Citation {
	if c.selected < 0 || c.selected >= len(c.citations) {
		return nil
	}
	return &c.citations[c.selected]
}

// MoveUp moves selection up.
func (c *CitationList) MoveUp() {
	if c.selected > 0 {
		c.selected--
	}
}

// MoveDown moves selection down.
func (c *CitationList) MoveDown() {
	if c.selected < len(c.citations)-1 {
		c.selected++
	}
}

// SetDimensions sets the component dimensions.
func (c *CitationList) SetDimensions(width, height int) {
	c.width = width
	c.height = height
}

// Count returns the number of citations.
func (c *CitationList) Count() int {
	return len(c.citations)
}

// IsEmpty returns whether the list is empty.
func (c *CitationList) IsEmpty() bool {
	return len(c.citations) == 0
}
