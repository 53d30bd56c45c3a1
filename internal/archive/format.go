package archive

import (
	"bytes"
	"path"
	"strings"
)

// Format identifies a container format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatEstargz
	FormatGzip
	FormatZstd
	FormatLZ4
	FormatSnappy
	FormatBzip2
	FormatXz
	FormatSevenZip
	FormatRar
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatEstargz:
		return "estargz"
	case FormatGzip:
		return "gzip"
	case FormatZstd:
		return "zstd"
	case FormatLZ4:
		return "lz4"
	case FormatSnappy:
		return "snappy"
	case FormatBzip2:
		return "bzip2"
	case FormatXz:
		return "xz"
	case FormatSevenZip:
		return "7z"
	case FormatRar:
		return "rar"
	default:
		return "unknown"
	}
}

// sniffLen is the number of leading bytes inspected for magic numbers.
// Tar needs the most: its magic sits at offset 257.
const sniffLen = 512

var (
	magicZipLocal   = []byte("PK\x03\x04")
	magicZipEmpty   = []byte("PK\x05\x06")
	magicGzip       = []byte{0x1f, 0x8b, 0x08}
	magicZstd       = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicLZ4        = []byte{0x04, 0x22, 0x4d, 0x18}
	magicSnappy     = []byte("\xff\x06\x00\x00sNaPpY")
	magicBzip2      = []byte("BZh")
	magicBzip2Block = []byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}
	magicBzip2End   = []byte{0x17, 0x72, 0x45, 0x38, 0x50, 0x90}
	magicXz         = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicSevenZip   = []byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}
	magicRar4       = []byte("Rar!\x1a\x07\x00")
	magicRar5       = []byte("Rar!\x1a\x07\x01\x00")
	magicTar        = []byte("ustar")
)

const tarMagicOffset = 257

// sniff reads the blob header and returns the matching enabled format.
func (d *Decoder) sniff(src *source) (Format, error) {
	n := int64(sniffLen)
	if src.size < n {
		n = src.size
	}
	if n <= 0 {
		return FormatUnknown, ErrUnrecognized
	}
	header := make([]byte, n)
	if _, err := src.ra.ReadAt(header, 0); err != nil && src.ioErr() != nil {
		return FormatUnknown, src.ioError(err)
	}

	format := detect(header)
	switch {
	case format == FormatUnknown:
		return FormatUnknown, ErrUnrecognized
	case d.enabled(format):
		return format, nil
	case format == FormatGzip && d.enabled(FormatEstargz):
		// eStargz layers carry gzip magic.
		return format, nil
	default:
		return FormatUnknown, ErrUnrecognized
	}
}

// detect matches header against the known magic numbers.
func detect(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, magicZipLocal), bytes.HasPrefix(header, magicZipEmpty):
		return FormatZip
	case bytes.HasPrefix(header, magicGzip):
		return FormatGzip
	case bytes.HasPrefix(header, magicZstd):
		return FormatZstd
	case bytes.HasPrefix(header, magicLZ4):
		return FormatLZ4
	case bytes.HasPrefix(header, magicSnappy):
		return FormatSnappy
	case isBzip2(header):
		return FormatBzip2
	case bytes.HasPrefix(header, magicXz):
		return FormatXz
	case bytes.HasPrefix(header, magicSevenZip):
		return FormatSevenZip
	case bytes.HasPrefix(header, magicRar4), bytes.HasPrefix(header, magicRar5):
		return FormatRar
	case len(header) >= tarMagicOffset+len(magicTar) &&
		bytes.Equal(header[tarMagicOffset:tarMagicOffset+len(magicTar)], magicTar):
		return FormatTar
	default:
		return FormatUnknown
	}
}

func isBzip2(header []byte) bool {
	if len(header) < 10 || !bytes.HasPrefix(header, magicBzip2) {
		return false
	}
	if level := header[3]; level < '1' || level > '9' {
		return false
	}
	return bytes.HasPrefix(header[4:], magicBzip2Block) || bytes.HasPrefix(header[4:], magicBzip2End)
}

// streamExts maps compressed-stream extensions to the suffix of the
// decompressed name.
var streamExts = map[Format]map[string]string{
	FormatGzip:   {".gz": "", ".gzip": "", ".tgz": ".tar"},
	FormatZstd:   {".zst": "", ".zstd": "", ".tzst": ".tar"},
	FormatLZ4:    {".lz4": "", ".tlz4": ".tar"},
	FormatSnappy: {".sz": "", ".snappy": ""},
	FormatBzip2:  {".bz2": "", ".tbz2": ".tar", ".tbz": ".tar"},
	FormatXz:     {".xz": "", ".txz": ".tar"},
}

// streamEntryName derives the name of the single entry of a compressed stream.
func streamEntryName(name string, f Format) string {
	ext := path.Ext(name)
	if repl, ok := streamExts[f][strings.ToLower(ext)]; ok {
		if trimmed := strings.TrimSuffix(name, ext); trimmed != "" {
			return trimmed + repl
		}
	}
	return name
}
