// Package annotator copies source metadata onto chunks and labels pages.
package annotator

import (
	"context"
	"sort"
	"strconv"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// Processor stamps each chunk with its document's file name, title,
// source URI and page label. It implements the PostProcessor interface.
type Processor struct{}

// New creates an annotator.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "annotator"
}

// Process annotates chunks in place and returns them.
func (p *Processor) Process(_ context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	starts := PageStarts(doc.Metadata[domain.MetaPageStarts])
	fileName := doc.FileName()

	for i := range chunks {
		c := &chunks[i]
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		if fileName != "" {
			c.Metadata[domain.MetaFileName] = fileName
		}
		if doc.Title != "" {
			c.Metadata[domain.MetaTitle] = doc.Title
		}
		if doc.URI != "" {
			c.Metadata[domain.MetaURI] = doc.URI
		}
		if label := PageLabel(starts, c.Start); label != "" {
			c.Metadata[domain.MetaPageLabel] = label
		}
	}
	return chunks, nil
}

// PageLabel returns the 1-based page containing offset, or "" without pages.
func PageLabel(starts []int, offset int) string {
	if len(starts) == 0 {
		return ""
	}
	page := sort.Search(len(starts), func(i int) bool { return starts[i] > offset })
	if page == 0 {
		page = 1
	}
	return strconv.Itoa(page)
}

// PageStarts reads page offsets stored in metadata. Values decoded from
// JSON arrive as []any of float64.
func PageStarts(v any) []int {
	switch s := v.(type) {
	case []int:
		return s
	case []any:
		out := make([]int, 0, len(s))
		for _, e := range s {
			switch n := e.(type) {
			case int:
				out = append(out, n)
			case int64:
				out = append(out, int(n))
			case float64:
				out = append(out, int(n))
			}
		}
		return out
	default:
		return nil
	}
}
