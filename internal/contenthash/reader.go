package contenthash

import (
	"hash"
	"io"
)

// Reader wraps an io.Reader and hashes all data read through it.
type Reader struct {
	r io.Reader
	h hash.Hash
}

// NewReader creates a reader that feeds h while reading from r.
func NewReader(r io.Reader, h hash.Hash) *Reader {
	return &Reader{r: r, h: h}
}

// Read implements io.Reader.
func (hr *Reader) Read(p []byte) (int, error) {
	n, err := hr.r.Read(p)
	if n > 0 {
		_, _ = hr.h.Write(p[:n]) //nolint:errcheck // hash writes never fail
	}
	return n, err
}

// Sum returns the digest of the data read so far.
func (hr *Reader) Sum() Hash {
	var out Hash
	copy(out[:], hr.h.Sum(nil))
	return out
}
