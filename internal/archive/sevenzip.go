package archive

import (
	"github.com/bodgit/sevenzip"
)

// sevenZipContainer reads 7z archives through random access on the source.
type sevenZipContainer struct {
	src *source
	zr  *sevenzip.Reader
}

func openSevenZip(src *source) (Container, error) {
	zr, err := sevenzip.NewReader(src.ra, src.size)
	if err != nil {
		return nil, src.classify(FormatSevenZip, err)
	}
	return &sevenZipContainer{src: src, zr: zr}, nil
}

func (c *sevenZipContainer) Format() Format {
	return FormatSevenZip
}

// Walk visits members in archive order. Members of a solid block are
// decompressed from the start of the block, so order matters for speed.
func (c *sevenZipContainer) Walk(fn WalkFunc) error {
	for _, f := range c.zr.File {
		if !f.FileInfo().Mode().IsRegular() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return c.src.classify(FormatSevenZip, err)
		}
		size := int64(-1)
		if f.UncompressedSize <= 1<<62 {
			size = int64(f.UncompressedSize)
		}
		err = fn(Entry{Name: f.Name, Size: size}, &entryReader{r: rc, src: c.src, format: FormatSevenZip})
		_ = rc.Close() //nolint:errcheck // read-only
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *sevenZipContainer) Close() error {
	return nil
}
