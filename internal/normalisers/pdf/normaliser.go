// Package pdf normalises PDF files with github.com/ledongthuc/pdf.
//
// Pages are joined by blank lines and the rune offset at which each page
// starts is stored under domain.MetaPageStarts, which the annotator turns
// into per chunk page labels.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// PageExtractor returns the plain text of each page in order.
type PageExtractor func(ctx context.Context, data []byte) ([]string, error)

// Normaliser handles PDF documents.
type Normaliser struct {
	extract PageExtractor
}

// New creates a PDF normaliser backed by ledongthuc/pdf.
func New() *Normaliser {
	return &Normaliser{extract: ExtractPages}
}

// NewWithExtractor creates a normaliser with a custom page extractor.
func NewWithExtractor(extract PageExtractor) *Normaliser {
	return &Normaliser{extract: extract}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"application/pdf"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts page text and records page boundaries.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	pages, err := n.extract(ctx, raw.Content)
	if err != nil {
		return nil, err
	}

	content, starts := joinPages(pages)
	meta := maps.Clone(raw.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["format"] = "pdf"
	meta["page_count"] = len(pages)
	if len(starts) > 0 {
		meta[domain.MetaPageStarts] = starts
	}

	return &driven.NormaliseResult{Document: domain.Document{
		Title:    plaintext.Title(raw),
		Content:  content,
		Metadata: meta,
	}}, nil
}

// joinPages concatenates non-empty pages with blank lines and returns the
// rune offset of every page. An empty page starts where the previous one ended.
func joinPages(pages []string) (string, []int) {
	var b strings.Builder
	starts := make([]int, 0, len(pages))
	runes := 0
	for _, p := range pages {
		p = strings.TrimSpace(p)
		if p != "" && b.Len() > 0 {
			b.WriteString("\n\n")
			runes += 2
		}
		starts = append(starts, runes)
		b.WriteString(p)
		runes += utf8.RuneCountInString(p)
	}
	return b.String(), starts
}

// ExtractPages reads every page with ledongthuc/pdf. The library panics on
// some malformed files, so panics are returned as errors.
func ExtractPages(ctx context.Context, data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: malformed pdf: %v", domain.ErrInvalidInput, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", domain.ErrInvalidInput, err)
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
