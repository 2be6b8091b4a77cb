// Package flat provides an exact, in-process vector index.
// It implements the driven.VectorIndex interface.
//
// Readers never lock: every Search loads an immutable snapshot of the
// entries and scores it in full. Writers serialise on a mutex, append in
// place for inserts and publish a filtered copy for deletions, so a query
// sees a deletion either completely or not at all.
package flat
