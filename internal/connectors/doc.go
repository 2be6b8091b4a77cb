// Package connectors produces raw documents for ingestion.
//
// The filesystem connector walks and watches local paths, the web
// connector fetches pages over HTTP and manifest reads YAML batch files
// that combine both. Collect drains any connector into a slice.
package connectors
