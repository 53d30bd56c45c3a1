package archive

import (
	"archive/tar"
	"errors"
	"io"
)

// tarContainer streams a tar archive front to back.
type tarContainer struct {
	src *source
}

func openTar(src *source) (Container, error) {
	return &tarContainer{src: src}, nil
}

func (c *tarContainer) Format() Format {
	return FormatTar
}

func (c *tarContainer) Walk(fn WalkFunc) error {
	tr := tar.NewReader(c.src.section())
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil && (hdr == nil || !errors.Is(err, tar.ErrInsecurePath)) {
			return c.src.classify(FormatTar, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err := fn(Entry{Name: hdr.Name, Size: hdr.Size}, &entryReader{r: tr, src: c.src, format: FormatTar}); err != nil {
			return err
		}
	}
}

func (c *tarContainer) Close() error {
	return nil
}
