package domain

import (
	"errors"
	"fmt"
	"time"
)

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	// Name is the file name.
	Name string

	// Type is the document type tag.
	Type string

	// Size is the raw byte size.
	Size int64

	// URI is the source path or URL.
	URI string

	// DocumentID is set when a document was stored.
	DocumentID string

	// Chunks is the number of chunks stored.
	Chunks int

	// Duplicate marks a file skipped because its content is already stored.
	Duplicate bool

	// Err is the per-file failure, if any.
	Err error
}

// IngestReport summarises a batch ingestion.
type IngestReport struct {
	// Results has one entry per input file, in input order.
	Results []FileResult

	// Duration is the wall time of the batch.
	Duration time.Duration
}

// Succeeded returns the number of files stored.
func (r *IngestReport) Succeeded() int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Err == nil && !r.Results[i].Duplicate {
			n++
		}
	}
	return n
}

// Failed returns the number of files that failed.
func (r *IngestReport) Failed() int {
	n := 0
	for i := range r.Results {
		if r.Results[i].Err != nil {
			n++
		}
	}
	return n
}

// Err joins the per-file errors, or returns nil if every file succeeded.
func (r *IngestReport) Err() error {
	var errs []error
	for i := range r.Results {
		if r.Results[i].Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Results[i].Name, r.Results[i].Err))
		}
	}
	return errors.Join(errs...)
}
