// Package markdown normalises Markdown files into plain prose.
package markdown

import (
	"context"
	"maps"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise strips Markdown syntax. Front matter keys are copied into
// metadata and a front matter title wins over the first heading.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta := maps.Clone(raw.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["format"] = "markdown"

	body, front := splitFrontMatter(plaintext.Clean(raw.Content))
	title, _ := front["title"].(string)
	for k, v := range front {
		if _, taken := meta[k]; !taken && k != "title" {
			meta[k] = v
		}
	}
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		title = plaintext.Title(raw)
	}

	return &driven.NormaliseResult{Document: domain.Document{
		Title:    title,
		Content:  Strip(body),
		Metadata: meta,
	}}, nil
}

// splitFrontMatter separates a leading YAML block delimited by --- lines.
// Malformed front matter is left in the body.
func splitFrontMatter(s string) (string, map[string]any) {
	if !strings.HasPrefix(s, "---\n") {
		return s, nil
	}
	end := strings.Index(s[4:], "\n---")
	if end < 0 {
		return s, nil
	}
	block := s[4 : 4+end]
	rest := s[4+end+4:]
	var front map[string]any
	if err := yaml.Unmarshal([]byte(block), &front); err != nil {
		return s, nil
	}
	return strings.TrimPrefix(rest, "\n"), front
}

func firstHeading(s string) string {
	for line := range strings.SplitSeq(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

var (
	fenceLine     = regexp.MustCompile("(?m)^[ \t]*(```|~~~).*$")
	inlineCode    = regexp.MustCompile("`([^`]+)`")
	imageRef      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	linkRef       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	headingMark   = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	emphasis      = regexp.MustCompile(`(\*\*|__|\*|~~)([^*_~\n]+)(\*\*|__|\*|~~)`)
	quoteMark     = regexp.MustCompile(`(?m)^>[ \t]?`)
	ruleLine      = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	bulletMark    = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	tableRule     = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-+:?[ \t]*(\|[ \t]*:?-+:?[ \t]*)*\|?[ \t]*$`)
	htmlTag       = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`(?m)[ \t]+$`)
)

// Strip removes Markdown markup and keeps the text, including code.
// Paragraph breaks survive as blank lines.
func Strip(s string) string {
	s = fenceLine.ReplaceAllString(s, "")
	s = imageRef.ReplaceAllString(s, "$1")
	s = linkRef.ReplaceAllString(s, "$1")
	s = inlineCode.ReplaceAllString(s, "$1")
	s = tableRule.ReplaceAllString(s, "")
	s = ruleLine.ReplaceAllString(s, "")
	s = headingMark.ReplaceAllString(s, "")
	s = quoteMark.ReplaceAllString(s, "")
	s = bulletMark.ReplaceAllString(s, "$1")
	s = emphasis.ReplaceAllString(s, "$2")
	s = htmlTag.ReplaceAllString(s, "")
	s = trailingSpace.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
