// Package contenthash computes and parses the 256-bit content digests used as
// manifest keys.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
	"github.com/zeebo/blake3"
)

// Size is the length in bytes of every content hash.
const Size = 32

// Hash is a 256-bit content digest.
type Hash [Size]byte

// String returns the lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Algorithm identifies the digest function used to compute a Hash.
type Algorithm uint8

const (
	SHA256 Algorithm = iota
	BLAKE3
)

// String returns the algorithm name as used in digest strings.
func (a Algorithm) String() string {
	switch a {
	case SHA256:
		return "sha256"
	case BLAKE3:
		return "blake3"
	default:
		return "unknown"
	}
}

// ParseAlgorithm returns the algorithm with the given name.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(name) {
	case "sha256", "sha-256":
		return SHA256, nil
	case "blake3":
		return BLAKE3, nil
	default:
		return 0, fmt.Errorf("contenthash: unknown algorithm %q", name)
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	if a == BLAKE3 {
		return blake3.New()
	}
	return sha256.New()
}

// Sum returns the digest of data.
func (a Algorithm) Sum(data []byte) Hash {
	if a == BLAKE3 {
		return blake3.Sum256(data)
	}
	return sha256.Sum256(data)
}

// SumReader streams r through the algorithm and returns the digest.
func (a Algorithm) SumReader(r io.Reader) (Hash, error) {
	hr := NewReader(r, a.New())
	if _, err := io.Copy(io.Discard, hr); err != nil {
		return Hash{}, err
	}
	return hr.Sum(), nil
}

// Digest formats h as an "algorithm:hex" digest string.
func (a Algorithm) Digest(h Hash) digest.Digest {
	return digest.NewDigestFromEncoded(digest.Algorithm(a.String()), h.String())
}

// ErrInvalid is returned when a digest string cannot be decoded.
var ErrInvalid = errors.New("contenthash: invalid digest")

// Parse decodes s into a Hash computed with alg.
//
// s is either a bare hex string of exactly 64 characters or a digest string
// of the form "algorithm:hex". In the latter form the algorithm must match alg.
func Parse(s string, alg Algorithm) (Hash, error) {
	encoded := s
	if strings.Contains(s, ":") {
		d := digest.Digest(s)
		if d.Algorithm().String() != alg.String() {
			return Hash{}, fmt.Errorf("%w: algorithm %q, want %q", ErrInvalid, d.Algorithm(), alg)
		}
		if alg == SHA256 {
			if err := d.Validate(); err != nil {
				return Hash{}, fmt.Errorf("%w: %w", ErrInvalid, err)
			}
		}
		encoded = d.Encoded()
	}
	if len(encoded) != hex.EncodedLen(Size) {
		return Hash{}, fmt.Errorf("%w: %d hex characters, want %d", ErrInvalid, len(encoded), hex.EncodedLen(Size))
	}
	var h Hash
	if _, err := hex.Decode(h[:], []byte(encoded)); err != nil {
		return Hash{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return h, nil
}
