package domain

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// SourceKind distinguishes local files from fetched web pages.
type SourceKind string

// Available source kinds.
const (
	// SourceKindFile is a document read from a local path or upload.
	SourceKindFile SourceKind = "file"

	// SourceKindURL is a document fetched from a web address.
	SourceKindURL SourceKind = "url"
)

// IsValid returns true if the source kind is recognised.
func (k SourceKind) IsValid() bool {
	return k == SourceKindFile || k == SourceKindURL
}

// String returns the string representation.
func (k SourceKind) String() string {
	return string(k)
}

// Well-known metadata keys shared by normalisers, the chunker and citations.
const (
	// MetaFileName is the base name of the originating file.
	MetaFileName = "file_name"

	// MetaTitle is the human-readable title of the document.
	MetaTitle = "title"

	// MetaPageLabel is the page or section label of a chunk.
	MetaPageLabel = "page_label"

	// MetaPageStarts holds the rune offsets at which each page begins.
	MetaPageStarts = "page_starts"

	// MetaMIMEType is the MIME type the document was normalised from.
	MetaMIMEType = "mime_type"

	// MetaContentHash is the SHA-256 of the raw bytes.
	MetaContentHash = "content_hash"

	// MetaSize is the raw byte size.
	MetaSize = "size"

	// MetaURI is the source path or URL copied onto chunks.
	MetaURI = "uri"
)

// Document represents an ingested document with metadata.
// It is the canonical representation after normalisation.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the source path or URL. Documents sharing a URI are
	// versions of the same source.
	URI string

	// Kind records whether URI is a file path or a URL.
	Kind SourceKind

	// FileType is the lower-case extension without the dot, or "url".
	FileType string

	// Title is the human-readable title.
	Title string

	// Content is the full text content after normalisation.
	// This is the complete document text before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Name returns the display name of the document.
// Files are named by base name without extension, web pages by title.
func (d *Document) Name() string {
	if d.Kind == SourceKindURL {
		if d.Title != "" {
			return d.Title
		}
		return d.URI
	}
	if d.URI == "" {
		return d.Title
	}
	base := filepath.Base(d.URI)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileName returns the base name of the source, including extension.
func (d *Document) FileName() string {
	if d.Kind == SourceKindURL {
		return ""
	}
	if v, ok := d.Metadata[MetaFileName].(string); ok && v != "" {
		return v
	}
	if d.URI == "" {
		return ""
	}
	return filepath.Base(d.URI)
}

// FileTypeFor derives the document type tag for a source.
func FileTypeFor(kind SourceKind, uri string) string {
	if kind == SourceKindURL {
		return string(SourceKindURL)
	}
	ext := path.Ext(filepath.ToSlash(uri))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Chunk represents a retrieval unit within a document.
// Documents are split into chunks for granular retrieval.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Start is the rune offset of the first character in the document.
	Start int

	// End is the rune offset one past the last character.
	End int

	// Overlap is the number of leading runes shared with the previous chunk.
	Overlap int

	// Embedding is the vector representation for semantic retrieval.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs.
	Metadata map[string]any
}

// Len returns the chunk length in runes.
func (c *Chunk) Len() int {
	return c.End - c.Start
}

// Fresh returns the part of the chunk not shared with its predecessor.
func (c *Chunk) Fresh() string {
	if c.Overlap <= 0 {
		return c.Content
	}
	r := []rune(c.Content)
	if c.Overlap >= len(r) {
		return ""
	}
	return string(r[c.Overlap:])
}

// MetaString returns a string metadata value or "".
func (c *Chunk) MetaString(key string) string {
	if c.Metadata == nil {
		return ""
	}
	v, _ := c.Metadata[key].(string)
	return v
}
