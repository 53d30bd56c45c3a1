// Package testutil builds archives and file trees for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containerd/stargz-snapshotter/estargz"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/require"
)

// File is a named blob placed into a test archive or tree.
type File struct {
	Name string
	Data []byte
}

// Wrapper encloses data in a container, naming the single member name where
// the format stores names.
type Wrapper func(t testing.TB, name string, data []byte) []byte

var modTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Zip builds a zip archive holding files, deflating every member.
func Zip(t testing.TB, files ...File) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: modTime})
		require.NoError(t, err)
		_, err = w.Write(f.Data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Tar builds a ustar archive holding files. Parent directory headers are
// emitted for nested names.
func Tar(t testing.TB, files ...File) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	seen := make(map[string]bool)
	for _, f := range files {
		for dir := filepath.ToSlash(filepath.Dir(f.Name)); dir != "." && !seen[dir]; dir = filepath.ToSlash(filepath.Dir(dir)) {
			seen[dir] = true
			require.NoError(t, tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     dir + "/",
				Mode:     0o755,
				ModTime:  modTime,
				Format:   tar.FormatUSTAR,
			}))
		}
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Typeflag: tar.TypeReg,
			Name:     f.Name,
			Mode:     0o644,
			Size:     int64(len(f.Data)),
			ModTime:  modTime,
			Format:   tar.FormatUSTAR,
		}))
		_, err := tw.Write(f.Data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

// Gzip compresses data as a single gzip stream.
func Gzip(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Zstd compresses data as a zstd stream.
func Zstd(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write(data)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

// LZ4 compresses data as an lz4 frame.
func LZ4(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Snappy compresses data using the snappy framing format.
func Snappy(t testing.TB, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := snappy.NewBufferedWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// Estargz converts a tar of files into an eStargz blob.
func Estargz(t testing.TB, files ...File) []byte {
	t.Helper()
	tarData := Tar(t, files...)
	blob, err := estargz.Build(io.NewSectionReader(bytes.NewReader(tarData), 0, int64(len(tarData))))
	require.NoError(t, err)
	defer blob.Close()
	data, err := io.ReadAll(blob)
	require.NoError(t, err)
	return data
}

// Wrappers for building nesting chains of mixed formats.
var (
	InZip Wrapper = func(t testing.TB, name string, data []byte) []byte {
		return Zip(t, File{Name: name, Data: data})
	}
	InTar Wrapper = func(t testing.TB, name string, data []byte) []byte {
		return Tar(t, File{Name: name, Data: data})
	}
	InTarGz Wrapper = func(t testing.TB, name string, data []byte) []byte {
		return Gzip(t, Tar(t, File{Name: name, Data: data}))
	}
	InGzip Wrapper = func(t testing.TB, _ string, data []byte) []byte {
		return Gzip(t, data)
	}
	InZstd Wrapper = func(t testing.TB, _ string, data []byte) []byte {
		return Zstd(t, data)
	}
	InLZ4 Wrapper = func(t testing.TB, _ string, data []byte) []byte {
		return LZ4(t, data)
	}
	InSnappy Wrapper = func(t testing.TB, _ string, data []byte) []byte {
		return Snappy(t, data)
	}
	InEstargz Wrapper = func(t testing.TB, name string, data []byte) []byte {
		return Estargz(t, File{Name: name, Data: data})
	}
	InXz Wrapper = func(t testing.TB, _ string, data []byte) []byte {
		return Xz(t, data)
	}
	InSevenZip Wrapper = func(t testing.TB, name string, data []byte) []byte {
		return SevenZip(t, File{Name: name, Data: data})
	}
	InRar Wrapper = func(t testing.TB, name string, data []byte) []byte {
		return Rar(t, File{Name: name, Data: data})
	}
)

// Nest wraps data in each wrapper in turn, innermost first.
func Nest(t testing.TB, name string, data []byte, wrappers ...Wrapper) []byte {
	t.Helper()
	for i, wrap := range wrappers {
		data = wrap(t, name, data)
		name = "level" + string(rune('0'+i)) + ".bin"
	}
	return data
}

// WriteFile writes data to dir/rel, creating parent directories.
func WriteFile(t testing.TB, dir, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// WriteTree writes every file under dir.
func WriteTree(t testing.TB, dir string, files ...File) {
	t.Helper()
	for _, f := range files {
		WriteFile(t, dir, f.Name, f.Data)
	}
}

// ReadTree returns every regular file under dir keyed by slash path.
func ReadTree(t testing.TB, dir string) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = data
		return nil
	})
	require.NoError(t, err)
	return out
}

// FailingReaderAt serves Data but fails every read that reaches FailAt.
type FailingReaderAt struct {
	Data   []byte
	FailAt int64
	Err    error
}

// ReadAt implements io.ReaderAt.
func (f *FailingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > f.FailAt {
		return 0, f.Err
	}
	return bytes.NewReader(f.Data).ReadAt(p, off)
}
