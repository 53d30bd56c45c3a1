package collate

// SourceKind tells the resolver how to treat a root source.
type SourceKind uint8

const (
	// KindAuto stats the path to decide between KindDir and KindFile.
	KindAuto SourceKind = iota
	KindDir
	KindFile
)

// String returns the kind name.
func (k SourceKind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindDir:
		return "directory"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Source is one root of the candidate pool.
type Source struct {
	Path string
	Kind SourceKind
}

// DirSource returns a source for the directory at path.
func DirSource(path string) Source {
	return Source{Path: path, Kind: KindDir}
}

// FileSource returns a source for the file at path.
func FileSource(path string) Source {
	return Source{Path: path, Kind: KindFile}
}

// AutoSource returns a source whose kind is decided when it is resolved.
func AutoSource(path string) Source {
	return Source{Path: path, Kind: KindAuto}
}
