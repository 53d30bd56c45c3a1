// Package archive decodes container formats into their entries.
//
// A Decoder probes a blob's leading bytes for a known magic number and, on a
// match, opens it as a Container. Blobs that carry no known magic, or whose
// structure turns out to be malformed while decoding, are reported with an
// error matching ErrUnrecognized. Read failures from the underlying source are
// returned as they are, so callers can tell "not an archive" from I/O trouble.
//
// Compressed streams (gzip, zstd, lz4, snappy, bzip2, xz) are containers with a
// single entry holding the decompressed bytes, so a .tar.gz decodes in two
// steps: the gzip stream, then the tar inside it.
package archive

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnrecognized is returned when a blob is not a container of a known format.
var ErrUnrecognized = errors.New("archive: unrecognized container")

// FormatError reports a blob whose magic matched a format but whose content
// could not be decoded as that format. It matches ErrUnrecognized.
type FormatError struct {
	Format Format
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("archive: malformed %s: %v", e.Format, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrUnrecognized.
func (e *FormatError) Is(target error) bool {
	return target == ErrUnrecognized
}

// Entry describes one member of a container.
type Entry struct {
	// Name is the member path inside the container.
	Name string

	// Size is the uncompressed size in bytes, or -1 when the format does not
	// record it up front.
	Size int64
}

// WalkFunc is called for each regular-file entry of a container.
//
// r yields the entry's bytes and is only valid during the call. Read errors
// from r are already classified: malformed data matches ErrUnrecognized and
// source failures do not. Errors returned by WalkFunc stop the walk and are
// returned from Walk unchanged.
type WalkFunc func(entry Entry, r io.Reader) error

// Container is a decoded archive.
type Container interface {
	// Format returns the detected container format.
	Format() Format

	// Walk calls fn for every regular-file entry, in format order.
	// Directories, links, and special files are skipped.
	Walk(fn WalkFunc) error

	// Close releases decoder resources.
	Close() error
}

// Decoder opens blobs as containers.
//
// A Decoder is not safe for concurrent use by multiple goroutines when it
// shares a zstd pool with other Decoders; create one per traversal.
type Decoder struct {
	formats map[Format]bool
	zstd    *DecompressPool
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithFormats restricts decoding to the given formats.
// By default every supported format is enabled.
func WithFormats(formats ...Format) Option {
	return func(d *Decoder) {
		d.formats = make(map[Format]bool, len(formats))
		for _, f := range formats {
			d.formats[f] = true
		}
	}
}

// WithMaxDecoderMemory limits the memory a zstd decoder may allocate.
// Zero means no limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(d *Decoder) {
		d.zstd = NewDecompressPool(limit)
	}
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	if d.zstd == nil {
		d.zstd = NewDecompressPool(0)
	}
	return d
}

// enabled reports whether f may be decoded.
func (d *Decoder) enabled(f Format) bool {
	if d.formats == nil {
		return true
	}
	return d.formats[f]
}

// Open probes the blob named name and opens it as a container.
//
// ra must stay valid until the returned Container is closed. Open returns an
// error matching ErrUnrecognized when the blob is not a container.
func (d *Decoder) Open(name string, ra io.ReaderAt, size int64) (Container, error) {
	src := &source{name: name, ra: &trackingReaderAt{ra: ra}, size: size}

	format, err := d.sniff(src)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatZip:
		return openZip(src)
	case FormatTar:
		return openTar(src)
	case FormatSevenZip:
		return openSevenZip(src)
	case FormatRar:
		return openRar(src)
	case FormatGzip:
		if d.enabled(FormatEstargz) {
			c, err := openEstargz(src)
			if err == nil {
				return c, nil
			}
			if src.ioErr() != nil {
				return nil, src.ioError(err)
			}
			if !d.enabled(FormatGzip) {
				return nil, err
			}
		}
		return openStream(src, FormatGzip, d)
	default:
		return openStream(src, format, d)
	}
}

// source is the blob being decoded.
type source struct {
	name string
	ra   *trackingReaderAt
	size int64
}

// section returns a fresh reader over the whole blob.
func (s *source) section() *io.SectionReader {
	return io.NewSectionReader(s.ra, 0, s.size)
}

// ioErr returns the first read failure seen on the source, if any.
func (s *source) ioErr() error {
	return s.ra.err
}

func (s *source) ioError(cause error) error {
	return fmt.Errorf("read %s: %w", s.name, errors.Join(s.ra.err, cause))
}

// classify converts a decoding failure into either an I/O error (when the
// source itself failed) or a FormatError.
func (s *source) classify(format Format, err error) error {
	if err == nil || err == io.EOF {
		return err
	}
	if s.ioErr() != nil {
		return fmt.Errorf("read %s: %w", s.name, s.ra.err)
	}
	var fe *FormatError
	if errors.As(err, &fe) || errors.Is(err, ErrUnrecognized) {
		return err
	}
	return &FormatError{Format: format, Err: err}
}

// entryReader classifies read errors of a single entry.
type entryReader struct {
	r      io.Reader
	src    *source
	format Format
}

func (e *entryReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err != nil && err != io.EOF {
		err = e.src.classify(e.format, err)
	}
	return n, err
}

// trackingReaderAt remembers the first non-EOF error of the wrapped ReaderAt.
type trackingReaderAt struct {
	ra  io.ReaderAt
	err error
}

func (t *trackingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	n, err := t.ra.ReadAt(p, off)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
