// Package domain defines the core business entities for ThinkRAG.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested file or web page with its raw text
//   - Chunk: A retrieval unit within a document
//   - Citation: A source passage attached to an answer
//   - Turn: A single entry in a chat session
//   - RawDocument: Opaque bytes from a loader
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
