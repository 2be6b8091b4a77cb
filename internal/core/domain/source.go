package domain

import "time"

// SourceEntry is one unique source in the knowledge base listing.
type SourceEntry struct {
	// ID is the id of the first document seen for this source.
	ID string

	// Name is the file base name without extension, or the page title.
	Name string

	// Type is the file extension or "url".
	Type string

	// URI is the source path or URL.
	URI string

	// CreatedAt is when the first document of this source was ingested.
	CreatedAt time.Time

	// Documents is the number of stored documents sharing URI.
	Documents int
}

// UniqueSources groups documents by URI, keeping the first seen.
// Documents without a URI are kept individually.
func UniqueSources(docs []Document) []SourceEntry {
	index := make(map[string]int)
	entries := make([]SourceEntry, 0, len(docs))
	for i := range docs {
		d := &docs[i]
		if d.URI != "" {
			if pos, ok := index[d.URI]; ok {
				entries[pos].Documents++
				continue
			}
			index[d.URI] = len(entries)
		}
		entries = append(entries, SourceEntry{
			ID:        d.ID,
			Name:      d.Name(),
			Type:      d.FileType,
			URI:       d.URI,
			CreatedAt: d.CreatedAt,
			Documents: 1,
		})
	}
	return entries
}

// SourcePage is one page of the source listing.
type SourcePage struct {
	// Entries are the sources on this page.
	Entries []SourceEntry

	// Page is the 1-based page number after clamping.
	Page int

	// PageSize is the number of entries per page.
	PageSize int

	// TotalPages is at least one.
	TotalPages int

	// Total is the number of unique sources.
	Total int
}

// Paginate returns the requested page, clamping it into 1..TotalPages.
func Paginate(entries []SourceEntry, page, size int) SourcePage {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(entries)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	end := min(start+size, total)
	var items []SourceEntry
	if start < end {
		items = append(items, entries[start:end]...)
	}
	return SourcePage{
		Entries:    items,
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
		Total:      total,
	}
}
