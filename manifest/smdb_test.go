package manifest

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSMDB(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		hexSum("a") + "\tgames/a.rom\tsha1a\tmd5a\tcrca",
		"",
		hexSum("b") + "\tgames/b.rom\r",
		"   ",
		hexSum("c") + "\tc.rom\tx\ty\tz\textra",
	}, "\n")

	records, err := ReadSMDB(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Record{Digest: hexSum("a"), Path: "games/a.rom", Aux: []string{"sha1a", "md5a", "crca"}, Line: 1}, records[0])
	assert.Equal(t, "games/b.rom", records[1].Path)
	assert.Empty(t, records[1].Aux)
	assert.Equal(t, 3, records[1].Line)
	assert.Equal(t, []string{"x", "y", "z", "extra"}, records[2].Aux)
	assert.Equal(t, 5, records[2].Line)
}

func TestReadSMDB_MissingPath(t *testing.T) {
	t.Parallel()

	input := hexSum("a") + "\ta.rom\n" + hexSum("b") + "\n"
	_, err := ReadSMDB(strings.NewReader(input))
	require.ErrorIs(t, err, ErrMalformedRecord)

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 2, recErr.Line)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadSMDB(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "pack.txt")
	content := hexSum("rom") + "\tsystem/rom.bin\tsha1\tmd5\tcrc\n" +
		hexSum("rom") + "\tsystem/alt.bin\tsha1\tmd5\tcrc\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	idx, err := LoadSMDB(path)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())

	p, ok := idx.Lookup(sha256.Sum256([]byte("rom")))
	require.True(t, ok)
	assert.Equal(t, "system/alt.bin", p)
}

func TestLoadSMDB_MalformedDigestReportsLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.txt")
	content := hexSum("ok") + "\tok.rom\n" + "deadbeef\tbad.rom\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadSMDB(path)
	require.ErrorIs(t, err, ErrMalformedRecord)

	var recErr *RecordError
	require.ErrorAs(t, err, &recErr)
	assert.Equal(t, 2, recErr.Line)
	assert.Equal(t, "digest", recErr.Field)
}

func TestLoadSMDB_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadSMDB(filepath.Join(t.TempDir(), "nope.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
