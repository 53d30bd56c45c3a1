package collate

import (
	"errors"

	"github.com/meigma/collate/internal/archive"
	"github.com/meigma/collate/internal/sink"
	"github.com/meigma/collate/manifest"
)

// Errors re-exported from subpackages.
var (
	// ErrMalformedRecord is returned when a manifest record is invalid.
	ErrMalformedRecord = manifest.ErrMalformedRecord

	// ErrUnrecognizedContainer signals a blob that is not a known container.
	// It never escapes traversal; such blobs are hashed as leaves.
	ErrUnrecognizedContainer = archive.ErrUnrecognized

	// ErrAlreadyExists is returned by the output sink when a target exists.
	// Traversal counts it in Stats.Existing and does not fail.
	ErrAlreadyExists = sink.ErrExist
)

// Sentinel errors specific to the collate package.
var (
	// ErrInvalidSource is returned when a source is neither a directory nor a
	// regular file.
	ErrInvalidSource = errors.New("collate: source is neither a directory nor a regular file")

	// ErrEntryTooLarge marks an archive entry above the configured size limit.
	ErrEntryTooLarge = errors.New("collate: archive entry exceeds size limit")

	// ErrSourceChanged is returned when content read for materialization no
	// longer matches the hash computed during traversal.
	ErrSourceChanged = errors.New("collate: source content changed during copy")
)
