package normalisers

import (
	"context"
	"fmt"
	"mime"
	"slices"
	"strings"
	"sync"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches raw documents to the highest priority normaliser
// registered for their MIME type. Unknown text/* types fall back to the
// text/plain normalisers.
type Registry struct {
	mu     sync.RWMutex
	byType map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string][]driven.Normaliser)}
}

// Register adds a normaliser under each of its MIME types. Among equal
// priorities the first registered wins.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range n.SupportedMIMETypes() {
		t = baseType(t)
		list := append(r.byType[t], n)
		slices.SortStableFunc(list, func(a, b driven.Normaliser) int {
			return b.Priority() - a.Priority()
		})
		r.byType[t] = list
	}
}

// Normalise runs the best matching normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	n, ok := r.lookup(raw.MIMEType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedType, raw.MIMEType)
	}
	return n.Normalise(ctx, raw)
}

// SupportedMIMETypes returns every registered MIME type, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// Supports reports whether some normaliser accepts the MIME type.
func (r *Registry) Supports(mimeType string) bool {
	_, ok := r.lookup(mimeType)
	return ok
}

func (r *Registry) lookup(mimeType string) (driven.Normaliser, bool) {
	t := baseType(mimeType)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if list := r.byType[t]; len(list) > 0 {
		return list[0], true
	}
	if strings.HasPrefix(t, "text/") {
		if list := r.byType["text/plain"]; len(list) > 0 {
			return list[0], true
		}
	}
	return nil, false
}

// baseType drops parameters such as charset and lower-cases the type.
func baseType(t string) string {
	if mt, _, err := mime.ParseMediaType(t); err == nil {
		return mt
	}
	t, _, _ = strings.Cut(t, ";")
	return strings.ToLower(strings.TrimSpace(t))
}
