package domain

// RawDocument represents opaque bytes handed to ingestion.
// It is the loader's output before normalisation.
type RawDocument struct {
	// Name is the file name as uploaded or found on disk.
	Name string

	// URI is the source path or URL.
	URI string

	// Kind records whether URI is a file path or a URL.
	Kind SourceKind

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Size is the byte size of Content.
	Size int64

	// Content is the raw bytes.
	Content []byte

	// Metadata contains loader-specific key-value pairs.
	Metadata map[string]any
}

// ChangeType represents the type of document change.
type ChangeType int

const (
	// ChangeCreated indicates a new document.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified document.
	ChangeUpdated

	// ChangeDeleted indicates a removed document.
	ChangeDeleted
)

// String returns the string representation.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// RawDocumentChange represents a change event from a watched directory.
type RawDocumentChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Document is the affected document. For deletions only URI is set.
	Document RawDocument
}
