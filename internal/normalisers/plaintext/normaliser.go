// Package plaintext is the fallback normaliser for text-like files.
package plaintext

import (
	"context"
	"maps"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser passes text through with line endings unified.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/tab-separated-values",
		"text/yaml",
		"text/toml",
		"text/x-go",
		"text/x-python",
		"text/x-java",
		"text/x-c",
		"text/x-shellscript",
		"text/x-sql",
		"text/javascript",
		"text/css",
		"application/json",
		"application/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5
}

// Normalise decodes the bytes as UTF-8 text.
func (n *Normaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := Clean(raw.Content)
	meta := maps.Clone(raw.Metadata)
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["format"] = "text"

	return &driven.NormaliseResult{Document: domain.Document{
		Title:    Title(raw),
		Content:  content,
		Metadata: meta,
	}}, nil
}

// Clean strips a byte order mark, replaces invalid UTF-8 and converts
// CRLF and CR line endings to LF.
func Clean(b []byte) string {
	s := strings.TrimPrefix(string(b), "\ufeff")
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\ufffd")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// Title prefers a loader supplied title, then the file name without extension.
func Title(raw *domain.RawDocument) string {
	if t, ok := raw.Metadata[domain.MetaTitle].(string); ok && t != "" {
		return t
	}
	name := raw.Name
	if name == "" {
		name = filepath.Base(raw.URI)
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
