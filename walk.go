package collate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/meigma/collate/internal/archive"
	"github.com/meigma/collate/internal/contenthash"
	"github.com/meigma/collate/internal/platform"
	"github.com/meigma/collate/internal/sink"
	"github.com/meigma/collate/internal/sizing"
)

// entrySep separates archive levels in blob names.
const entrySep = "!/"

// traversal holds the state of resolving one root source.
type traversal struct {
	r      *Resolver
	source string
	stats  Stats
}

// blob is a candidate input: a file on disk or a buffered archive entry.
type blob struct {
	name string
	ra   io.ReaderAt
	size int64

	// data holds the content of buffered entries.
	data []byte
	mem  bool
}

func memBlob(name string, data []byte) blob {
	return blob{
		name: name,
		ra:   bytes.NewReader(data),
		size: int64(len(data)),
		data: data,
		mem:  true,
	}
}

// content returns a fresh reader over the blob.
func (b blob) content() io.Reader {
	if b.mem {
		return bytes.NewReader(b.data)
	}
	return io.NewSectionReader(b.ra, 0, b.size)
}

func (t *traversal) resolve(src Source) error {
	kind := src.Kind
	if kind == KindAuto {
		info, err := os.Stat(src.Path)
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			kind = KindDir
		case info.Mode().IsRegular():
			kind = KindFile
		default:
			return &fs.PathError{Op: "resolve", Path: src.Path, Err: ErrInvalidSource}
		}
	}

	switch kind {
	case KindDir:
		return t.walkDir(src.Path)
	case KindFile:
		return t.visitFile(src.Path)
	default:
		return &fs.PathError{Op: "resolve", Path: src.Path, Err: ErrInvalidSource}
	}
}

// walkDir visits every regular file below dir. Symbolic links and special
// files are skipped.
func (t *traversal) walkDir(dir string) error {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	return fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			t.r.log().Debug("skipped non-regular file", "path", path, "type", d.Type().String())
			return nil
		}
		return t.visitDirEntry(root, dir, path)
	})
}

func (t *traversal) visitDirEntry(root *os.Root, dir, path string) error {
	fsPath := filepath.FromSlash(path)
	f, err := platform.OpenRegular(root, fsPath)
	if err != nil {
		if errors.Is(err, platform.ErrSymlink) || errors.Is(err, platform.ErrNotRegular) {
			t.r.log().Debug("skipped file", "path", path, "reason", err)
			return nil
		}
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	return t.visitBlob(blob{name: filepath.Join(dir, fsPath), ra: f, size: info.Size()}, 0)
}

// visitFile visits a root that names a single file.
func (t *traversal) visitFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return &fs.PathError{Op: "resolve", Path: path, Err: ErrInvalidSource}
	}
	return t.visitBlob(blob{name: path, ra: f, size: info.Size()}, 0)
}

// visitBlob probes b as a container and descends into it, or hashes it as a
// leaf when it is not one.
func (t *traversal) visitBlob(b blob, depth int) error {
	if t.r.maxDepth >= 0 && depth >= t.r.maxDepth {
		return t.visitLeaf(b)
	}

	c, err := t.r.decoder.Open(b.name, b.ra, b.size)
	switch {
	case err == nil:
		return t.visitContainer(b, c, depth)
	case errors.Is(err, archive.ErrUnrecognized):
		t.noteMalformed(b, err)
		return t.visitLeaf(b)
	default:
		return err
	}
}

// noteMalformed records a blob whose magic matched a format that then failed
// to decode.
func (t *traversal) noteMalformed(b blob, err error) {
	var fe *archive.FormatError
	if !errors.As(err, &fe) {
		return
	}
	t.stats.Malformed++
	t.r.log().Debug("malformed container treated as file", "path", b.name, "format", fe.Format.String(), "error", fe.Err)
}

func (t *traversal) visitContainer(b blob, c archive.Container, depth int) error {
	defer c.Close()

	t.stats.Containers++
	t.r.log().Debug("opened container", "path", b.name, "format", c.Format().String(), "depth", depth)
	t.r.reportProgress(StageContainer, t.source, b.name)

	if t.r.matchContainers {
		if err := t.visitLeaf(b); err != nil {
			return err
		}
	}

	err := c.Walk(func(entry archive.Entry, r io.Reader) error {
		name := b.name + entrySep + entry.Name
		data, err := sizing.ReadAllWithLimit(r, t.r.maxEntrySize, entry.Size, ErrEntryTooLarge)
		if errors.Is(err, ErrEntryTooLarge) {
			t.stats.Oversized++
			t.r.log().Warn("skipped oversized entry", "path", name, "limit", t.r.maxEntrySize)
			return nil
		}
		if err != nil {
			return err
		}
		return t.visitBlob(memBlob(name, data), depth+1)
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, archive.ErrUnrecognized) {
		return err
	}

	// Entries materialized before the failure stay; the blob itself is
	// still a candidate leaf.
	t.noteMalformed(b, err)
	if t.r.matchContainers {
		return nil
	}
	return t.visitLeaf(b)
}

// visitLeaf hashes b and materializes it when the manifest lists its hash
// and the hash has not been found yet.
func (t *traversal) visitLeaf(b blob) error {
	h, err := t.hash(b)
	if err != nil {
		return err
	}
	t.stats.Files++
	t.r.reportProgress(StageHashed, t.source, b.name)

	rel, ok := t.r.index.Lookup(h)
	if !ok {
		return nil
	}
	if _, seen := t.r.found[h]; seen {
		t.stats.Duplicates++
		t.r.log().Debug("duplicate match", "path", b.name, "target", rel)
		return nil
	}
	return t.materialize(b, h, rel)
}

func (t *traversal) hash(b blob) (Hash, error) {
	alg := t.r.index.Algorithm()
	if b.mem {
		return alg.Sum(b.data), nil
	}
	h, err := alg.SumReader(b.content())
	if err != nil {
		return Hash{}, fmt.Errorf("hash %s: %w", b.name, err)
	}
	return h, nil
}

// materialize copies b to rel below the output directory.
func (t *traversal) materialize(b blob, h Hash, rel string) error {
	w, err := t.r.sink.Writer(rel)
	if errors.Is(err, sink.ErrExist) {
		return t.existing(h, rel)
	}
	if err != nil {
		return fmt.Errorf("materialize %s: %w", rel, err)
	}

	n, err := t.copyVerified(w, b, h)
	if err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := w.Commit(); err != nil {
		if errors.Is(err, sink.ErrExist) {
			return t.existing(h, rel)
		}
		return fmt.Errorf("materialize %s: %w", rel, err)
	}

	t.r.found[h] = struct{}{}
	t.stats.Found++
	t.stats.Written++
	t.stats.BytesWritten += n
	t.r.log().Debug("materialized", "path", b.name, "target", rel, "size", n)
	t.r.reportProgress(StageMaterialized, t.source, rel)
	return nil
}

// copyVerified copies the content of b to w. Buffered entries are owned
// bytes and are copied as is; files on disk may change after visitLeaf hashed
// them, so their copy is hashed again and must still match h.
func (t *traversal) copyVerified(w io.Writer, b blob, h Hash) (int64, error) {
	if b.mem {
		n, err := w.Write(b.data)
		return int64(n), err
	}
	hr := contenthash.NewReader(b.content(), t.r.index.Algorithm().New())
	n, err := io.Copy(w, hr)
	if err != nil {
		return n, err
	}
	if hr.Sum() != h {
		return n, fmt.Errorf("%s: %w", b.name, ErrSourceChanged)
	}
	return n, nil
}

// existing handles a match whose target path is already present.
func (t *traversal) existing(h Hash, rel string) error {
	t.stats.Existing++
	if t.r.verifyExisting {
		ok, err := t.verifyExisting(h, rel)
		if err != nil {
			return err
		}
		if !ok {
			t.stats.Conflicts++
			t.r.log().Warn("existing output does not match manifest", "target", rel, "hash", h.String())
			return nil
		}
	}

	t.r.found[h] = struct{}{}
	t.stats.Found++
	t.r.log().Debug("output already present", "target", rel)
	t.r.reportProgress(StageExisting, t.source, rel)
	return nil
}

// verifyExisting reports whether the file at rel hashes to h. Targets that
// are not regular files never match.
func (t *traversal) verifyExisting(h Hash, rel string) (bool, error) {
	f, err := t.r.sink.Open(rel)
	if err != nil {
		return false, fmt.Errorf("verify %s: %w", rel, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("verify %s: %w", rel, err)
	}
	if !info.Mode().IsRegular() {
		return false, nil
	}
	got, err := t.r.index.Algorithm().SumReader(f)
	if err != nil {
		return false, fmt.Errorf("verify %s: %w", rel, err)
	}
	return got == h, nil
}
