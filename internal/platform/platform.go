// Package platform wraps OS-specific file opening for source traversal.
package platform

import (
	"errors"
	"os"
)

var (
	// ErrSymlink is returned when attempting to open a symbolic link.
	ErrSymlink = errors.New("symbolic links not supported")

	// ErrNotRegular is returned when the opened path is not a regular file.
	ErrNotRegular = errors.New("not a regular file")
)

// checkRegular closes f and returns ErrNotRegular unless f is a regular file.
func checkRegular(f *os.File) (*os.File, error) {
	info, err := f.Stat()
	if err != nil {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close() //nolint:errcheck // best-effort cleanup
		return nil, ErrNotRegular
	}
	return f, nil
}
