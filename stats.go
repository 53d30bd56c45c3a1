package collate

import (
	"errors"
	"fmt"
)

// Stats counts what a resolution did.
type Stats struct {
	// Matched is the size of the found set when the stats were taken.
	Matched int

	// Total is the number of distinct hashes in the manifest.
	Total int

	// Found is the number of hashes this resolution added to the found set.
	Found int

	// Files is the number of leaf blobs hashed.
	Files int

	// Containers is the number of blobs decoded as archives.
	Containers int

	// Malformed is the number of blobs that looked like an archive but did
	// not decode, and were hashed as leaves instead.
	Malformed int

	// Written is the number of files materialized.
	Written int

	// BytesWritten is the total size of materialized files.
	BytesWritten int64

	// Existing is the number of matches whose target path already existed.
	Existing int

	// Duplicates is the number of matches whose hash was already found.
	Duplicates int

	// Conflicts is the number of existing targets whose content did not match
	// (only with WithVerifyExisting).
	Conflicts int

	// Oversized is the number of archive entries skipped for size.
	Oversized int
}

// add accumulates the counters of other. Matched and Total are snapshots
// and are taken from other.
func (s *Stats) add(other Stats) {
	s.Matched = other.Matched
	s.Total = other.Total
	s.Found += other.Found
	s.Files += other.Files
	s.Containers += other.Containers
	s.Malformed += other.Malformed
	s.Written += other.Written
	s.BytesWritten += other.BytesWritten
	s.Existing += other.Existing
	s.Duplicates += other.Duplicates
	s.Conflicts += other.Conflicts
	s.Oversized += other.Oversized
}

// SourceResult is the outcome of resolving one root source.
type SourceResult struct {
	Source Source
	Stats  Stats

	// Err is non-nil if the source failed. Matches made before the failure
	// stay materialized.
	Err error
}

// Report summarizes a run over several sources.
type Report struct {
	// Matched is the number of manifest hashes found during the run.
	Matched int

	// Total is the number of distinct hashes in the manifest.
	Total int

	// Stats aggregates the counters of every source.
	Stats Stats

	// Sources holds one result per processed source, in order.
	Sources []SourceResult
}

// Failed returns the number of sources that failed.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Sources {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed source, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Sources {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", res.Source.Path, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Percent returns Matched as a percentage of Total.
func (r *Report) Percent() float64 {
	if r.Total == 0 {
		return 0
	}
	return 100 * float64(r.Matched) / float64(r.Total)
}
