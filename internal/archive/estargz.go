package archive

import (
	"errors"
	"slices"
	"strings"

	"github.com/containerd/stargz-snapshotter/estargz"
)

// minEstargzSize is the smallest blob that can hold an eStargz footer.
const minEstargzSize = 64

// estargzContainer reads eStargz layers through their table of contents,
// opening each regular file by random access instead of streaming the tar.
type estargzContainer struct {
	src *source
	r   *estargz.Reader
}

func openEstargz(src *source) (Container, error) {
	if src.size < minEstargzSize {
		return nil, ErrUnrecognized
	}
	r, err := estargz.Open(src.section())
	if err != nil {
		return nil, &FormatError{Format: FormatEstargz, Err: err}
	}
	return &estargzContainer{src: src, r: r}, nil
}

func (c *estargzContainer) Format() Format {
	return FormatEstargz
}

func (c *estargzContainer) Walk(fn WalkFunc) error {
	root, ok := c.r.Lookup("")
	if !ok {
		return &FormatError{Format: FormatEstargz, Err: errors.New("missing root entry")}
	}
	return c.walkDir(root, fn)
}

// walkDir visits the children of dir in name order.
func (c *estargzContainer) walkDir(dir *estargz.TOCEntry, fn WalkFunc) error {
	var children []*estargz.TOCEntry
	dir.ForeachChild(func(_ string, ent *estargz.TOCEntry) bool {
		children = append(children, ent)
		return true
	})
	slices.SortFunc(children, func(a, b *estargz.TOCEntry) int {
		return strings.Compare(a.Name, b.Name)
	})

	for _, ent := range children {
		switch ent.Type {
		case "dir":
			if err := c.walkDir(ent, fn); err != nil {
				return err
			}
		case "reg":
			sr, err := c.r.OpenFile(ent.Name)
			if err != nil {
				return c.src.classify(FormatEstargz, err)
			}
			if err := fn(Entry{Name: ent.Name, Size: ent.Size}, &entryReader{r: sr, src: c.src, format: FormatEstargz}); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *estargzContainer) Close() error {
	return nil
}
