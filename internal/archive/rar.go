package archive

import (
	"io"

	"github.com/nwaples/rardecode/v2"
)

// rarContainer streams a single-volume RAR archive front to back.
type rarContainer struct {
	src *source
}

func openRar(src *source) (Container, error) {
	return &rarContainer{src: src}, nil
}

func (c *rarContainer) Format() Format {
	return FormatRar
}

func (c *rarContainer) Walk(fn WalkFunc) error {
	rr, err := rardecode.NewReader(c.src.section())
	if err != nil {
		return c.src.classify(FormatRar, err)
	}
	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return c.src.classify(FormatRar, err)
		}
		if hdr.IsDir || !hdr.Mode().IsRegular() {
			continue
		}
		size := hdr.UnPackedSize
		if hdr.UnKnownSize {
			size = -1
		}
		if err := fn(Entry{Name: hdr.Name, Size: size}, &entryReader{r: rr, src: c.src, format: FormatRar}); err != nil {
			return err
		}
	}
}

func (c *rarContainer) Close() error {
	return nil
}
