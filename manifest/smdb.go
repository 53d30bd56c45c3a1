package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxSMDBLine bounds a single SMDB line.
const maxSMDBLine = 1 << 20

// ReadSMDB reads SMDB records from r.
//
// Each non-blank line holds tab-separated fields: the SHA-256 digest, the
// output path, and optionally further checksums (SHA-1, MD5, CRC32). Fields
// after the path are kept in Record.Aux. Digests are not validated here;
// Build does that.
func ReadSMDB(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxSMDBLine)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 2 {
			return nil, &RecordError{
				Index: len(records),
				Line:  line,
				Field: "path",
				Value: text,
				Err:   errors.New("missing tab-separated path field"),
			}
		}
		records = append(records, Record{
			Digest: fields[0],
			Path:   fields[1],
			Aux:    fields[2:],
			Line:   line,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("manifest: read smdb: %w", err)
	}
	return records, nil
}

// LoadSMDB reads the SMDB file at path and builds an index from it.
func LoadSMDB(path string, opts ...Option) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := ReadSMDB(f)
	if err != nil {
		return nil, err
	}
	return Build(records, opts...)
}
