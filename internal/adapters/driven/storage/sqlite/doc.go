// Package sqlite provides SQLite-backed implementations of the document and
// chat stores.
//
// The database lives at ~/.thinkrag/data/thinkrag.db by default and is opened
// in WAL mode. Schema changes are applied from the embedded migrations on
// every open; each applied version is recorded in schema_migrations.
//
// Chunk embeddings are stored as little-endian float32 blobs so the vector
// index can be rebuilt at startup without calling the embedding provider.
package sqlite
