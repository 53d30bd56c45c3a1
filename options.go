package collate

import (
	"log/slog"

	"github.com/meigma/collate/internal/archive"
)

// DefaultMaxDepth is the nesting depth at which blobs stop being probed as
// containers.
const DefaultMaxDepth = 32

// DefaultMaxEntrySize is the largest archive entry buffered for traversal.
const DefaultMaxEntrySize int64 = 1 << 30

// Format identifies a container format.
type Format = archive.Format

// Container formats recognized during traversal.
const (
	FormatZip      =  archive.FormatZip
	FormatTar      =  archive.FormatTar
	FormatEstargz  =  archive.FormatEstargz
	FormatGzip     =  archive.FormatGzip
	FormatZstd     =  archive.FormatZstd
	FormatLZ4      =  archive.FormatLZ4
	FormatSnappy   =  archive.FormatSnappy
	FormatBzip2    =  archive.FormatBzip2
	FormatXz       =  archive.FormatXz
	FormatSevenZip =  archive.FormatSevenZip
	FormatRar      =  archive.FormatRar
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDepth sets how many archive levels are opened below a root.
// Blobs at depth n are hashed as leaves without probing.
// Negative values remove the limit.
func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		r.maxDepth = n
	}
}

// WithMaxEntrySize limits the size of an archive entry buffered in memory.
// Larger entries are skipped and counted in Stats.Oversized.
// Negative values remove the limit.
func WithMaxEntrySize(limit int64) Option {
	return func(r *Resolver) {
		r.maxEntrySize = limit
	}
}

// WithMaxDecoderMemory limits the memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(r *Resolver) {
		r.maxDecoderMemory = limit
	}
}

// WithFormats restricts container probing to the given formats.
// Blobs of any other format are hashed as leaves.
func WithFormats(formats ...Format) Option {
	return func(r *Resolver) {
		r.formats = append([]Format(nil), formats...)
		r.formatsSet = true
	}
}

// WithVerifyExisting controls whether a pre-existing output file is hashed
// before it counts as found (default: false).
//
// A file whose content does not match is counted in Stats.Conflicts and left
// untouched; its hash stays missing.
func WithVerifyExisting(enabled bool) Option {
	return func(r *Resolver) {
		r.verifyExisting = enabled
	}
}

// WithMatchContainers controls whether decoded containers are also hashed
// and matched against the manifest (default: false).
func WithMatchContainers(enabled bool) Option {
	return func(r *Resolver) {
		r.matchContainers = enabled
	}
}

// WithLogger sets the logger for resolution events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithProgress sets a callback for progress events.
func WithProgress(fn ProgressFunc) Option {
	return func(r *Resolver) {
		r.progress = fn
	}
}
