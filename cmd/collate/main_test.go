package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/collate/internal/testutil"
)

func sum(data []byte) string {
	s := sha256.Sum256(data)
	return hex.EncodeToString(s[:])
}

func writeManifest(t *testing.T, lines ...string) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), "pack.smdb", []byte(strings.Join(lines, "\n")+"\n"))
}

func TestRun_ResolvesAndReports(t *testing.T) {
	t.Setenv(configEnv, "")

	a := []byte("first rom")
	b := []byte("second rom")
	manifestPath := writeManifest(t,
		sum(a)+"\tset/a.rom\tsha1\tmd5\tcrc",
		sum(b)+"\tset/b.rom",
		sum([]byte("absent"))+"\tset/c.rom",
	)

	src := t.TempDir()
	testutil.WriteFile(t, src, "a.bin", a)
	archive := testutil.WriteFile(t, t.TempDir(), "b.tar.gz", testutil.Gzip(t, testutil.Tar(t, testutil.File{Name: "b.bin", Data: b})))
	dest := t.TempDir()
	missing := filepath.Join(t.TempDir(), "missing.txt")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"--missing", missing, manifestPath, dest, src, archive}, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	assert.Contains(t, stdout.String(), "Manifest lists 3 files.")
	assert.Contains(t, stdout.String(), "Found 2 files (66.67%).")
	assert.Equal(t, map[string][]byte{"set/a.rom": a, "set/b.rom": b}, testutil.ReadTree(t, dest))

	got, err := os.ReadFile(missing)
	require.NoError(t, err)
	assert.Equal(t, "set/c.rom\n", string(got))
}

func TestRun_MissingDestination(t *testing.T) {
	t.Setenv(configEnv, "")

	manifestPath := writeManifest(t, sum([]byte("x"))+"\tx")
	dest := filepath.Join(t.TempDir(), "nope")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{manifestPath, dest, t.TempDir()}, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, exitError, exitStatus(err, &stderr))
	assert.Contains(t, stderr.String(), "does not exist")
}

func TestRun_BadManifest(t *testing.T) {
	t.Setenv(configEnv, "")

	manifestPath := writeManifest(t, "not-a-digest\tx.rom")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{manifestPath, t.TempDir(), t.TempDir()}, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, exitError, exitStatus(err, &stderr))
	assert.Contains(t, stderr.String(), "could not read manifest")
	assert.Empty(t, stdout.String())
}

func TestRun_FailedSourceExitsTwo(t *testing.T) {
	t.Setenv(configEnv, "")

	a := []byte("still found")
	manifestPath := writeManifest(t, sum(a)+"\ta.rom")
	src := t.TempDir()
	testutil.WriteFile(t, src, "a.bin", a)
	dest := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{manifestPath, dest, filepath.Join(src, "missing"), src}, &stdout, &stderr)
	require.Error(t, err)

	assert.Equal(t, exitSourceFailed, exitStatus(err, &stderr))
	assert.Contains(t, stdout.String(), "Found 1 files (100.00%).")
	assert.Contains(t, stderr.String(), "missing")
	assert.Equal(t, a, testutil.ReadTree(t, dest)["a.rom"])
}

func TestRun_Usage(t *testing.T) {
	t.Setenv(configEnv, "")

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"only-one"}, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, exitError, exitStatus(err, &bytes.Buffer{}))
	assert.Contains(t, stderr.String(), "USAGE")

	stderr.Reset()
	require.NoError(t, run(context.Background(), []string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--max-entry-size")
}

func TestConfig_FileAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "collate.yaml", []byte(`
max_depth: 3
max_entry_size: 10MiB
verify_existing: true
hash: blake3
log_level: debug
`))
	t.Setenv(configEnv, path)

	cfg := defaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.addFlags(fs)
	require.NoError(t, fs.Parse([]string{"--max-depth", "7"}))
	require.NoError(t, cfg.applyFile(fs))

	assert.Equal(t, 7, cfg.maxDepth)
	assert.Equal(t, "10MiB", cfg.maxEntrySize)
	assert.True(t, cfg.verifyExisting)
	assert.False(t, cfg.matchContainers)
	assert.Equal(t, "blake3", cfg.hash)
	assert.Equal(t, "debug", cfg.logLevel)
}

func TestConfig_UnknownField(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "collate.yaml", []byte("max_dept: 3\n"))

	cfg := defaultConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.addFlags(fs)
	require.NoError(t, fs.Parse([]string{"--config", path}))

	err := cfg.applyFile(fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_dept")
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "1GiB", want: 1 << 30},
		{in: "1.0 GiB", want: 1 << 30},
		{in: "500 MB", want: 500_000_000},
		{in: "42", want: 42},
		{in: "-1", want: -1},
		{in: "unlimited", want: -1},
		{in: "lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := parseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultConfig_SizeRoundTrips(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	n, err := parseSize(cfg.maxEntrySize)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), n)
}
