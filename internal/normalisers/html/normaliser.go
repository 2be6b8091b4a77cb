package html

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the page title and readable text.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := Extract(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, err
	}

	meta := maps.Clone(raw.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["format"] = "html"
	if page.Description != "" {
		meta["description"] = page.Description
	}

	title := page.Title
	if title == "" {
		title = plaintext.Title(raw)
	}
	return &driven.NormaliseResult{Document: domain.Document{
		Title:    title,
		Content:  page.Text,
		Metadata: meta,
	}}, nil
}

// Page is the readable content of an HTML document.
type Page struct {
	Title       string
	Description string
	Text        string
}

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
	atom.Iframe:   true,
}

// blocks separate paragraphs.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Main: true, atom.Header: true, atom.Footer: true, atom.Aside: true,
	atom.Nav: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Li: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Tr: true,
	atom.Blockquote: true, atom.Pre: true, atom.Hr: true, atom.Dl: true,
	atom.Dt: true, atom.Dd: true, atom.Figure: true, atom.Figcaption: true,
}

// Extract tokenizes r and returns its title, meta description and text.
func Extract(r io.Reader) (Page, error) {
	var (
		page    Page
		text    paragraphs
		title   strings.Builder
		skip    int
		inTitle bool
	)

	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return Page{}, err
			}
			page.Title = collapse(title.String())
			page.Text = text.String()
			return page, nil

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = true
			case tok.DataAtom == atom.Meta:
				if attr(tok, "name") == "description" {
					page.Description = collapse(attr(tok, "content"))
				}
			case tok.DataAtom == atom.Br:
				text.lineBreak()
			case skipped[tok.DataAtom] && tok.Type == html.StartTagToken:
				skip++
			case blocks[tok.DataAtom]:
				text.paragraph()
			}

		case html.EndTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Title:
				inTitle = false
			case skipped[tok.DataAtom]:
				skip = max(skip-1, 0)
			case blocks[tok.DataAtom]:
				text.paragraph()
			}

		case html.TextToken:
			switch {
			case inTitle:
				title.Write(z.Text())
			case skip == 0:
				text.write(string(z.Text()))
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// paragraphs accumulates text with whitespace collapsed inside lines.
type paragraphs struct {
	b       strings.Builder
	pending string
	space   bool
}

func (p *paragraphs) write(s string) {
	if strings.TrimSpace(s) == "" {
		if s != "" {
			p.space = true
		}
		return
	}
	if p.b.Len() > 0 {
		switch {
		case p.pending != "":
			p.b.WriteString(p.pending)
		case p.space || startsWithSpace(s):
			p.b.WriteByte(' ')
		}
	}
	p.pending = ""
	p.space = endsWithSpace(s)
	p.b.WriteString(collapse(s))
}

func (p *paragraphs) paragraph() {
	p.pending = "\n\n"
}

func (p *paragraphs) lineBreak() {
	if p.pending == "" {
		p.pending = "\n"
	}
}

func (p *paragraphs) String() string {
	return p.b.String()
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\r\n") != s
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\r\n") != s
}
