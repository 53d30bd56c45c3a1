//go:build unix

package platform

import (
	"errors"
	"os"
	"syscall"
)

// OpenRegular opens name under root for reading without following symlinks.
// Returns ErrSymlink if name is a symbolic link and ErrNotRegular if it is not
// a regular file.
func OpenRegular(root *os.Root, name string) (*os.File, error) {
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, ErrSymlink
		}
		return nil, err
	}
	return checkRegular(f)
}
