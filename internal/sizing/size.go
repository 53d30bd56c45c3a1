// Package sizing provides bounded reads for buffering archive entries.
package sizing

import (
	"bytes"
	"io"
	"math"
)

// maxPresize caps the preallocation a size hint from an archive header may
// trigger.
const maxPresize = 64 << 20

// ReadAllWithLimit reads r to EOF, holding at most maxSize bytes.
// A negative maxSize disables the limit. sizeHint, when positive, presizes
// the buffer. Returns overflowErr if more than maxSize bytes are available.
func ReadAllWithLimit(r io.Reader, maxSize, sizeHint int64, overflowErr error) ([]byte, error) {
	if maxSize >= 0 && sizeHint > maxSize {
		return nil, overflowErr
	}
	var buf bytes.Buffer
	if sizeHint > 0 {
		buf.Grow(int(min(sizeHint, maxPresize)) + bytes.MinRead)
	}
	if maxSize < 0 {
		if _, err := buf.ReadFrom(r); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if maxSize == math.MaxInt64 {
		maxSize--
	}
	lr := &io.LimitedReader{R: r, N: maxSize + 1}
	if _, err := buf.ReadFrom(lr); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > maxSize {
		return nil, overflowErr
	}
	return buf.Bytes(), nil
}
