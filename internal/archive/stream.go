package archive

import (
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// streamContainer is a compressed stream holding exactly one entry.
type streamContainer struct {
	src     *source
	format  Format
	r       io.Reader
	release func()
}

func openStream(src *source, format Format, d *Decoder) (Container, error) {
	c := &streamContainer{src: src, format: format, release: func() {}}
	sr := src.section()

	switch format {
	case FormatGzip:
		zr, err := gzip.NewReader(sr)
		if err != nil {
			return nil, src.classify(format, err)
		}
		c.r = zr
		c.release = func() { _ = zr.Close() } //nolint:errcheck // read-only
	case FormatZstd:
		dec, release, err := d.zstd.Get(sr)
		if err != nil {
			return nil, src.classify(format, err)
		}
		c.r = dec
		c.release = release
	case FormatLZ4:
		c.r = lz4.NewReader(sr)
	case FormatSnappy:
		c.r = snappy.NewReader(sr)
	case FormatBzip2:
		c.r = bzip2.NewReader(sr)
	case FormatXz:
		xr, err := xz.NewReader(sr)
		if err != nil {
			return nil, src.classify(format, err)
		}
		c.r = xr
	default:
		return nil, fmt.Errorf("archive: no stream decoder for %s", format)
	}
	return c, nil
}

func (c *streamContainer) Format() Format {
	return c.format
}

func (c *streamContainer) Walk(fn WalkFunc) error {
	entry := Entry{Name: streamEntryName(c.src.name, c.format), Size: -1}
	return fn(entry, &entryReader{r: c.r, src: c.src, format: c.format})
}

func (c *streamContainer) Close() error {
	if c.release != nil {
		c.release()
		c.release = nil
	}
	return nil
}
