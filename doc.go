// Package collate resolves a manifest of content-addressed files against a
// pool of candidate inputs and copies every match to its canonical path.
//
// Inputs may be plain files, directory trees, or archives nested to any
// depth in any mix of supported formats (zip, tar, 7z, rar, eStargz, gzip,
// zstd, lz4, snappy, bzip2, xz). Every leaf blob is hashed and looked up in a
// [manifest.Index]; matches are written below an output directory at the
// path the manifest names.
//
// # Quick Start
//
//	idx, err := manifest.LoadSMDB("pack.txt")
//	if err != nil {
//	    return err
//	}
//	r, err := collate.New(idx, "./out", collate.WithLogger(slog.Default()))
//	if err != nil {
//	    return err
//	}
//	report, err := r.Resolve(ctx,
//	    collate.DirSource("./downloads"),
//	    collate.FileSource("./bundle.zip"),
//	)
//	fmt.Printf("found %d of %d\n", report.Matched, report.Total)
//
// # Traversal
//
// Directories are walked without following symbolic links. Every regular
// file, and every archive entry, is a blob. A blob is first probed as a
// container; if it decodes, each entry is read fully into memory and visited
// as a blob of its own, one level deeper. Buffering is what lets formats that
// only support a single forward pass be retried as plain content. A blob that
// does not decode is a leaf and is hashed.
//
// Peak memory therefore grows with nesting depth times the largest entry;
// [WithMaxDepth] and [WithMaxEntrySize] bound both.
//
// # Output
//
// Each matched hash is materialized at most once per run. Existing files in
// the output directory are never overwritten: the first writer wins, and a
// pre-existing file at a target path counts as satisfied. Writes are staged in
// a temp file so that the final path never holds partial content.
//
// A Resolver is not safe for concurrent use.
package collate
