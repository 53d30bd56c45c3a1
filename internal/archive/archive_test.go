package archive

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/collate/internal/testutil"
)

// collect opens data and returns every entry's content keyed by name.
func collect(t *testing.T, d *Decoder, name string, data []byte) (Format, map[string][]byte) {
	t.Helper()
	c, err := d.Open(name, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	defer c.Close()

	got := make(map[string][]byte)
	err = c.Walk(func(entry Entry, r io.Reader) error {
		content, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		if entry.Size >= 0 {
			assert.Equal(t, int64(len(content)), entry.Size, entry.Name)
		}
		got[entry.Name] = content
		return nil
	})
	require.NoError(t, err)
	return c.Format(), got
}

func TestDecoder_Formats(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte("payload "), 512)
	files := []testutil.File{
		{Name: "a.bin", Data: payload},
		{Name: "dir/b.bin", Data: []byte("second")},
	}

	tests := []struct {
		name   string
		blob   func(t *testing.T) []byte
		format Format
		want   map[string][]byte
	}{
		{
			name:   "roms.zip",
			blob:   func(t *testing.T) []byte { return testutil.Zip(t, files...) },
			format: FormatZip,
			want:   map[string][]byte{"a.bin": payload, "dir/b.bin": []byte("second")},
		},
		{
			name:   "roms.tar",
			blob:   func(t *testing.T) []byte { return testutil.Tar(t, files...) },
			format: FormatTar,
			want:   map[string][]byte{"a.bin": payload, "dir/b.bin": []byte("second")},
		},
		{
			name:   "layer.tar.gz",
			blob:   func(t *testing.T) []byte { return testutil.Estargz(t, files...) },
			format: FormatEstargz,
		},
		{
			name:   "rom.bin.gz",
			blob:   func(t *testing.T) []byte { return testutil.Gzip(t, payload) },
			format: FormatGzip,
			want:   map[string][]byte{"rom.bin": payload},
		},
		{
			name:   "bundle.tgz",
			blob:   func(t *testing.T) []byte { return testutil.Gzip(t, testutil.Tar(t, files...)) },
			format: FormatGzip,
		},
		{
			name:   "rom.bin.zst",
			blob:   func(t *testing.T) []byte { return testutil.Zstd(t, payload) },
			format: FormatZstd,
			want:   map[string][]byte{"rom.bin": payload},
		},
		{
			name:   "rom.bin.lz4",
			blob:   func(t *testing.T) []byte { return testutil.LZ4(t, payload) },
			format: FormatLZ4,
			want:   map[string][]byte{"rom.bin": payload},
		},
		{
			name:   "rom.bin.sz",
			blob:   func(t *testing.T) []byte { return testutil.Snappy(t, payload) },
			format: FormatSnappy,
			want:   map[string][]byte{"rom.bin": payload},
		},
		{
			name:   "rom.bin.xz",
			blob:   func(t *testing.T) []byte { return testutil.Xz(t, payload) },
			format: FormatXz,
			want:   map[string][]byte{"rom.bin": payload},
		},
		{
			name:   "bundle.tbz2",
			blob:   func(*testing.T) []byte { return testutil.TarBz2 },
			format: FormatBzip2,
		},
		{
			name:   "roms.7z",
			blob:   func(t *testing.T) []byte { return testutil.SevenZip(t, files...) },
			format: FormatSevenZip,
			want:   map[string][]byte{"a.bin": payload, "dir/b.bin": []byte("second")},
		},
		{
			name:   "roms.rar",
			blob:   func(t *testing.T) []byte { return testutil.Rar(t, files...) },
			format: FormatRar,
			want:   map[string][]byte{"a.bin": payload, "dir/b.bin": []byte("second")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			format, got := collect(t, NewDecoder(), tt.name, tt.blob(t))
			assert.Equal(t, tt.format, format)
			switch {
			case tt.want != nil:
				assert.Equal(t, tt.want, got)
			case tt.format == FormatEstargz:
				assert.Equal(t, payload, got["a.bin"])
				assert.Equal(t, []byte("second"), got["dir/b.bin"])
			default:
				require.Len(t, got, 1)
				assert.Contains(t, got, "bundle.tar")
			}
		})
	}
}

func TestDecoder_EstargzDisabledFallsBackToGzip(t *testing.T) {
	t.Parallel()

	data := testutil.Estargz(t, testutil.File{Name: "a.bin", Data: []byte("x")})
	d := NewDecoder(WithFormats(FormatGzip, FormatTar))

	format, got := collect(t, d, "layer.gz", data)
	assert.Equal(t, FormatGzip, format)
	require.Contains(t, got, "layer")
	require.GreaterOrEqual(t, len(got["layer"]), sniffLen)
	assert.Equal(t, FormatTar, detect(got["layer"][:sniffLen]))
}

func TestDecoder_Bzip2Tar(t *testing.T) {
	t.Parallel()

	d := NewDecoder()
	format, outer := collect(t, d, "set.tar.bz2", testutil.TarBz2)
	assert.Equal(t, FormatBzip2, format)
	require.Contains(t, outer, "set.tar")

	format, inner := collect(t, d, "set.tar", outer["set.tar"])
	assert.Equal(t, FormatTar, format)
	assert.Equal(t, map[string][]byte{"game.bin": []byte(testutil.FixturePayload)}, inner)
}

func TestDecoder_EstargzWithoutGzip(t *testing.T) {
	t.Parallel()

	d := NewDecoder(WithFormats(FormatEstargz))

	layer := testutil.Estargz(t, testutil.File{Name: "a.bin", Data: []byte("layer member")})
	format, got := collect(t, d, "layer", layer)
	assert.Equal(t, FormatEstargz, format)
	assert.Equal(t, []byte("layer member"), got["a.bin"])

	plain := testutil.Gzip(t, bytes.Repeat([]byte("plain gzip "), 64))
	_, err := d.Open("plain.gz", bytes.NewReader(plain), int64(len(plain)))
	require.ErrorIs(t, err, ErrUnrecognized)
}

func TestDecoder_Unrecognized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "text", data: []byte("just some rom bytes")},
		{name: "tiny", data: []byte{0x1f}},
		{name: "zip magic then junk", data: append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0xaa}, 64)...)},
		{name: "gzip magic then junk", data: append([]byte{0x1f, 0x8b, 0x08}, bytes.Repeat([]byte{0xff}, 16)...)},
		{name: "xz magic then junk", data: append([]byte{0xfd, '7', 'z', 'X', 'Z', 0x00}, bytes.Repeat([]byte{0x11}, 32)...)},
		{name: "7z magic then junk", data: append([]byte{'7', 'z', 0xbc, 0xaf, 0x27, 0x1c}, bytes.Repeat([]byte{0x22}, 64)...)},
		{name: "rar magic then junk", data: append([]byte("Rar!\x1a\x07\x00"), bytes.Repeat([]byte{0x33}, 64)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, err := NewDecoder().Open(tt.name, bytes.NewReader(tt.data), int64(len(tt.data)))
			if err == nil {
				// Some formats only fail once entries are read.
				defer c.Close()
				err = c.Walk(func(_ Entry, r io.Reader) error {
					_, err := io.ReadAll(r)
					return err
				})
			}
			require.ErrorIs(t, err, ErrUnrecognized)
		})
	}
}

func TestDecoder_DisabledFormatIsUnrecognized(t *testing.T) {
	t.Parallel()

	data := testutil.Zip(t, testutil.File{Name: "a", Data: []byte("a")})
	_, err := NewDecoder(WithFormats(FormatTar)).Open("a.zip", bytes.NewReader(data), int64(len(data)))
	require.ErrorIs(t, err, ErrUnrecognized)
}

func TestDecoder_TruncatedStreamIsFormatError(t *testing.T) {
	t.Parallel()

	full := testutil.Gzip(t, bytes.Repeat([]byte("abcdefgh"), 4096))
	data := full[:len(full)/2]

	c, err := NewDecoder().Open("rom.gz", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	defer c.Close()

	err = c.Walk(func(_ Entry, r io.Reader) error {
		_, err := io.ReadAll(r)
		return err
	})
	require.ErrorIs(t, err, ErrUnrecognized)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FormatGzip, fe.Format)
}

func TestDecoder_SourceFailureIsNotUnrecognized(t *testing.T) {
	t.Parallel()

	errDisk := errors.New("disk on fire")
	data := testutil.Tar(t, testutil.File{Name: "big.bin", Data: bytes.Repeat([]byte("z"), 64<<10)})
	ra := &testutil.FailingReaderAt{Data: data, FailAt: 8 << 10, Err: errDisk}

	c, err := NewDecoder().Open("big.tar", ra, int64(len(data)))
	require.NoError(t, err)
	defer c.Close()

	err = c.Walk(func(_ Entry, r io.Reader) error {
		_, err := io.ReadAll(r)
		return err
	})
	require.ErrorIs(t, err, errDisk)
	assert.NotErrorIs(t, err, ErrUnrecognized)
}

func TestDecoder_HeaderReadFailure(t *testing.T) {
	t.Parallel()

	errDisk := errors.New("disk on fire")
	ra := &testutil.FailingReaderAt{Data: make([]byte, 1024), FailAt: 0, Err: errDisk}

	_, err := NewDecoder().Open("x", ra, 1024)
	require.ErrorIs(t, err, errDisk)
	assert.NotErrorIs(t, err, ErrUnrecognized)
}

func TestDecoder_WalkCallbackErrorPassesThrough(t *testing.T) {
	t.Parallel()

	errStop := errors.New("stop")
	data := testutil.Zip(t,
		testutil.File{Name: "a", Data: []byte("a")},
		testutil.File{Name: "b", Data: []byte("b")},
	)
	c, err := NewDecoder().Open("x.zip", bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	defer c.Close()

	calls := 0
	err = c.Walk(func(Entry, io.Reader) error {
		calls++
		return errStop
	})
	require.ErrorIs(t, err, errStop)
	assert.NotErrorIs(t, err, ErrUnrecognized)
	assert.Equal(t, 1, calls)
}

func TestDecoder_SkipsNonRegularTarEntries(t *testing.T) {
	t.Parallel()

	data := testutil.Tar(t, testutil.File{Name: "deep/er/file.bin", Data: []byte("leaf")})
	_, got := collect(t, NewDecoder(), "x.tar", data)
	assert.Equal(t, map[string][]byte{"deep/er/file.bin": []byte("leaf")}, got)
}

func TestStreamEntryName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		format Format
		want   string
	}{
		{"rom.bin.gz", FormatGzip, "rom.bin"},
		{"bundle.tgz", FormatGzip, "bundle.tar"},
		{"ROM.BIN.GZ", FormatGzip, "ROM.BIN"},
		{"rom.zst", FormatZstd, "rom"},
		{"x.tbz2", FormatBzip2, "x.tar"},
		{"set.txz", FormatXz, "set.tar"},
		{"rom.bin.xz", FormatXz, "rom.bin"},
		{"noext", FormatLZ4, "noext"},
		{".gz", FormatGzip, ".gz"},
		{"a.zip!/b.gz", FormatGzip, "a.zip!/b"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, streamEntryName(tt.in, tt.format), tt.in)
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tarData := testutil.Tar(t, testutil.File{Name: "a", Data: []byte("a")})
	assert.Equal(t, FormatTar, detect(tarData[:sniffLen]))
	assert.Equal(t, FormatBzip2, detect([]byte("BZh91AY&SY\x00\x00")))
	assert.Equal(t, FormatUnknown, detect([]byte("BZh01AY&SY\x00\x00")))
	assert.Equal(t, FormatUnknown, detect([]byte("BZh9 not bzip")))
	assert.Equal(t, FormatZip, detect([]byte("PK\x05\x06")))
	assert.Equal(t, FormatXz, detect(testutil.Xz(t, []byte("x"))))
	assert.Equal(t, FormatSevenZip, detect(testutil.SevenZip(t, testutil.File{Name: "a", Data: []byte("a")})))
	assert.Equal(t, FormatRar, detect(testutil.Rar(t, testutil.File{Name: "a", Data: []byte("a")})))
	assert.Equal(t, FormatRar, detect([]byte("Rar!\x1a\x07\x01\x00")))
	assert.Equal(t, FormatUnknown, detect(nil))
}
