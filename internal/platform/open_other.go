//go:build !unix

package platform

import (
	"io/fs"
	"os"
)

// OpenRegular opens name under root for reading without following symlinks.
// Returns ErrSymlink if name is a symbolic link and ErrNotRegular if it is not
// a regular file.
func OpenRegular(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, ErrSymlink
	}
	f, err := root.Open(name)
	if err != nil {
		return nil, err
	}
	return checkRegular(f)
}
