package collate

// ProgressEvent reports a step of a resolution.
type ProgressEvent struct {
	// Stage identifies what happened.
	Stage ProgressStage

	// Source is the root source being resolved.
	Source string

	// Path is the blob concerned, with "!/" separating archive levels.
	// For StageMaterialized and StageExisting it is the output path.
	Path string

	// Matched is the size of the found set.
	Matched int

	// Total is the number of distinct hashes in the manifest.
	Total int
}

// ProgressStage identifies the kind of progress event.
type ProgressStage uint8

const (
	// StageSource marks the start of a root source.
	StageSource ProgressStage = iota

	// StageContainer marks a blob decoded as an archive.
	StageContainer

	// StageHashed marks a leaf blob that was hashed.
	StageHashed

	// StageMaterialized marks a match written to the output tree.
	StageMaterialized

	// StageExisting marks a match whose target already existed.
	StageExisting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageSource:
		return "source"
	case StageContainer:
		return "container"
	case StageHashed:
		return "hashed"
	case StageMaterialized:
		return "materialized"
	case StageExisting:
		return "existing"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress events. It is called synchronously from the
// traversal.
type ProgressFunc func(ProgressEvent)
