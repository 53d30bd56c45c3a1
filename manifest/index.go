package manifest

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"slices"
	"strings"

	"github.com/meigma/collate/internal/contenthash"
)

// Hash is a 256-bit content digest.
type Hash = contenthash.Hash

// Algorithm identifies the digest function of an index.
type Algorithm = contenthash.Algorithm

// Supported digest algorithms.
const (
	SHA256 = contenthash.SHA256
	BLAKE3 = contenthash.BLAKE3
)

// ErrMalformedRecord is returned when a record cannot be added to an index.
var ErrMalformedRecord = errors.New("manifest: malformed record")

// RecordError describes a malformed record. It matches ErrMalformedRecord.
type RecordError struct {
	// Index is the zero-based position of the record in the input.
	Index int

	// Line is the source line number, when the record came from a file.
	Line int

	// Field names the offending field ("digest" or "path").
	Field string

	// Value is the offending field value.
	Value string

	Err error
}

func (e *RecordError) Error() string {
	where := fmt.Sprintf("record %d", e.Index)
	if e.Line > 0 {
		where = fmt.Sprintf("line %d", e.Line)
	}
	return fmt.Sprintf("manifest: malformed record at %s: %s %q: %v", where, e.Field, e.Value, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrMalformedRecord.
func (e *RecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// Record is one raw manifest record.
type Record struct {
	// Digest is the content hash, as 64 hex characters or "algorithm:hex".
	Digest string

	// Path is the output path relative to the destination, slash separated.
	Path string

	// Aux holds any further fields. They take part in duplicate resolution
	// only.
	Aux []string

	// Line is the source line number, or zero.
	Line int
}

// tailKey is the ordering key used to resolve duplicate hashes.
func (r *Record) tailKey() string {
	if len(r.Aux) == 0 {
		return r.Path
	}
	return r.Path + "\t" + strings.Join(r.Aux, "\t")
}

// Entry is a resolved manifest entry.
type Entry struct {
	Hash Hash
	Path string
}

// Index maps content hashes to output paths.
//
// An Index is immutable and safe for concurrent use.
type Index struct {
	alg   Algorithm
	paths map[Hash]string
}

type buildConfig struct {
	alg Algorithm
}

// Option configures index construction.
type Option func(*buildConfig)

// WithAlgorithm sets the digest algorithm of the records. Default SHA256.
func WithAlgorithm(alg Algorithm) Option {
	return func(cfg *buildConfig) {
		cfg.alg = alg
	}
}

// Build validates records and builds an index.
//
// Build fails with a *RecordError for the first record, in input order, whose
// digest is not a valid 256-bit digest of the configured algorithm or whose
// path is not a valid relative path. Duplicate hashes are resolved as
// described in the package documentation.
func Build(records []Record, opts ...Option) (*Index, error) {
	cfg := buildConfig{alg: SHA256}
	for _, opt := range opts {
		opt(&cfg)
	}

	type parsed struct {
		hash Hash
		path string
		tail string
	}
	items := make([]parsed, 0, len(records))
	for i := range records {
		rec := &records[i]
		h, err := contenthash.Parse(strings.TrimSpace(rec.Digest), cfg.alg)
		if err != nil {
			return nil, &RecordError{Index: i, Line: rec.Line, Field: "digest", Value: rec.Digest, Err: err}
		}
		p := NormalizePath(rec.Path)
		if p == "." || !fs.ValidPath(p) {
			return nil, &RecordError{Index: i, Line: rec.Line, Field: "path", Value: rec.Path, Err: fs.ErrInvalid}
		}
		items = append(items, parsed{hash: h, path: p, tail: rec.tailKey()})
	}

	slices.SortStableFunc(items, func(a, b parsed) int {
		return cmp.Compare(b.tail, a.tail)
	})

	idx := &Index{alg: cfg.alg, paths: make(map[Hash]string, len(items))}
	for _, it := range items {
		idx.paths[it.hash] = it.path
	}
	return idx, nil
}

// Lookup returns the output path for h.
func (idx *Index) Lookup(h Hash) (string, bool) {
	p, ok := idx.paths[h]
	return p, ok
}

// Len returns the number of distinct hashes in the index.
func (idx *Index) Len() int {
	return len(idx.paths)
}

// Algorithm returns the digest algorithm of the index.
func (idx *Index) Algorithm() Algorithm {
	return idx.alg
}

// Entries returns an iterator over all entries, sorted by path then hash.
func (idx *Index) Entries() iter.Seq[Entry] {
	entries := make([]Entry, 0, len(idx.paths))
	for h, p := range idx.paths {
		entries = append(entries, Entry{Hash: h, Path: p})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return slices.Compare(a.Hash[:], b.Hash[:])
	})
	return slices.Values(entries)
}
