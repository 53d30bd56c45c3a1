package archive

import (
	"github.com/klauspost/compress/zip"
)

// zipContainer reads zip archives through random access on the source.
type zipContainer struct {
	src *source
	zr  *zip.Reader
}

func openZip(src *source) (Container, error) {
	zr, err := zip.NewReader(src.ra, src.size)
	if zr == nil {
		return nil, src.classify(FormatZip, err)
	}
	// A non-nil reader with an error flags insecure member names; names are
	// only used for display, so the archive is still usable.
	return &zipContainer{src: src, zr: zr}, nil
}

func (c *zipContainer) Format() Format {
	return FormatZip
}

func (c *zipContainer) Walk(fn WalkFunc) error {
	for _, f := range c.zr.File {
		if !f.Mode().IsRegular() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return c.src.classify(FormatZip, err)
		}
		size := int64(-1)
		if f.UncompressedSize64 <= 1<<62 {
			size = int64(f.UncompressedSize64)
		}
		err = fn(Entry{Name: f.Name, Size: size}, &entryReader{r: rc, src: c.src, format: FormatZip})
		_ = rc.Close() //nolint:errcheck // read-only
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *zipContainer) Close() error {
	return nil
}
