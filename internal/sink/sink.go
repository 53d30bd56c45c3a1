// Package sink materializes matched content into the output tree.
//
// Writes never replace an existing path and are never observable half-done:
// content is staged in a temp file next to the target and linked into place.
package sink

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrExist is returned (wrapped in *fs.PathError) when the target already exists.
var ErrExist = fs.ErrExist

const defaultTempPrefix = ".collate-"

// FileSink writes content to paths relative to a destination directory.
//
// All filesystem access goes through an os.Root, so relative paths cannot
// escape destDir.
type FileSink struct {
	destDir    string
	tempPrefix string
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithTempPrefix sets the name prefix of staging files.
func WithTempPrefix(prefix string) FileSinkOption {
	return func(s *FileSink) {
		if prefix != "" {
			s.tempPrefix = prefix
		}
	}
}

// NewFileSink creates a FileSink that writes under destDir.
//
// destDir is not checked here; operations fail if it does not exist.
func NewFileSink(destDir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		destDir:    destDir,
		tempPrefix: defaultTempPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the destination directory.
func (s *FileSink) Dir() string {
	return s.destDir
}

// Exists reports whether rel exists in the destination.
func (s *FileSink) Exists(rel string) (bool, error) {
	if !fs.ValidPath(rel) {
		return false, &fs.PathError{Op: "stat", Path: rel, Err: fs.ErrInvalid}
	}
	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return false, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	defer root.Close()

	_, err = root.Lstat(filepath.FromSlash(rel))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Open opens an existing file in the destination for reading.
func (s *FileSink) Open(rel string) (*os.File, error) {
	if !fs.ValidPath(rel) {
		return nil, &fs.PathError{Op: "open", Path: rel, Err: fs.ErrInvalid}
	}
	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}
	defer root.Close()
	return root.Open(filepath.FromSlash(rel))
}

// Put writes the content of r to rel and returns the number of bytes written.
//
// Missing parent directories are created. If rel already exists, Put returns
// an error matching ErrExist and leaves the existing file untouched.
func (s *FileSink) Put(rel string, r io.Reader) (int64, error) {
	c, err := s.Writer(rel)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(c, r)
	if err != nil {
		_ = c.Discard() //nolint:errcheck // best-effort cleanup
		return 0, fmt.Errorf("write %s: %w", rel, err)
	}
	if err := c.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Committer is a writer whose content becomes visible only on Commit.
type Committer interface {
	io.Writer

	// Commit moves the staged content to its final path.
	Commit() error

	// Discard removes the staged content.
	Discard() error
}

// Writer returns a Committer that stages content for rel.
func (s *FileSink) Writer(rel string) (Committer, error) {
	if !fs.ValidPath(rel) || rel == "." {
		return nil, &fs.PathError{Op: "create", Path: rel, Err: fs.ErrInvalid}
	}
	destRel := filepath.FromSlash(rel)
	destPath := filepath.Join(s.destDir, destRel)

	root, err := os.OpenRoot(s.destDir)
	if err != nil {
		return nil, fmt.Errorf("open destination root %s: %w", s.destDir, err)
	}

	if _, err := root.Lstat(destRel); err == nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, &fs.PathError{Op: "create", Path: rel, Err: ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	dir := filepath.Dir(destRel)
	if err := root.MkdirAll(dir, 0o750); err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create directory %s: %w", filepath.Dir(destPath), err)
	}

	tempFile, tempRel, err := createTempFile(root, dir, s.tempPrefix)
	if err != nil {
		_ = root.Close() //nolint:errcheck // best-effort cleanup
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	return &fileCommitter{
		rel:      rel,
		destPath: destPath,
		destRel:  destRel,
		tempFile: tempFile,
		tempRel:  tempRel,
		root:     root,
	}, nil
}

// fileCommitter writes to a temp file and links it into place on Commit.
type fileCommitter struct {
	rel      string
	destPath string
	destRel  string
	tempFile *os.File
	tempRel  string
	root     *os.Root
}

// Write implements io.Writer.
func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit syncs and closes the temp file, then publishes it at the final path.
//
// A hard link is used so that an existing target is never replaced. On
// filesystems without hard links Commit falls back to an existence check
// followed by a rename.
func (c *fileCommitter) Commit() error {
	defer c.root.Close()

	if err := c.tempFile.Sync(); err != nil {
		_ = c.tempFile.Close()       //nolint:errcheck // best-effort cleanup
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := c.tempFile.Close(); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}

	linkErr := c.root.Link(c.tempRel, c.destRel)
	if linkErr == nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // the final path is already published
		return nil
	}
	if errors.Is(linkErr, fs.ErrExist) {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return &fs.PathError{Op: "create", Path: c.rel, Err: ErrExist}
	}

	if _, err := c.root.Lstat(c.destRel); err == nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return &fs.PathError{Op: "create", Path: c.rel, Err: ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := c.root.Rename(c.tempRel, c.destRel); err != nil {
		_ = c.root.Remove(c.tempRel) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destPath, err)
	}
	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	defer c.root.Close()
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	return c.root.Remove(c.tempRel)
}

func createTempFile(root *os.Root, dir, prefix string) (*os.File, string, error) {
	const attempts = 10
	for range attempts {
		name, err := randomSuffix()
		if err != nil {
			return nil, "", err
		}
		relPath := filepath.Join(dir, prefix+name)
		f, err := root.OpenFile(relPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, relPath, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", errors.New("create temp file: exhausted retries")
}

func randomSuffix() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}
