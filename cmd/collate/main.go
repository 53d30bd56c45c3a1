// collate copies every file listed in a manifest out of a pool of
// directories and archives, writing each one to the path the manifest names.
//
// Usage:
//
//	collate [flags] <manifest> <destination> <source>...
//
// The manifest is a tab-separated file of "sha256<TAB>path" lines with
// optional trailing fields. Sources may be directories or files; archives
// are searched recursively, including archives inside archives.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/meigma/collate"
	"github.com/meigma/collate/internal/contenthash"
	"github.com/meigma/collate/manifest"
)

// Exit statuses.
const (
	exitOK           = 0
	exitError        = 1
	exitSourceFailed = 2
)

// exitCodeError carries a process exit status.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitCodeError) Unwrap() error {
	return e.err
}

func (e *exitCodeError) ExitCode() int {
	return e.code
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(exitStatus(err, os.Stderr))
}

// exitStatus reports err on stderr and returns the process exit status.
func exitStatus(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	var coder *exitCodeError
	if errors.As(err, &coder) {
		if coder.err != nil {
			fmt.Fprintf(stderr, "error: %v\n", coder.err)
		}
		return coder.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return exitError
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := defaultConfig()
	flagSet := pflag.NewFlagSet("collate", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.Usage = func() { printUsage(stderr, flagSet) }
	cfg.addFlags(flagSet)

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return &exitCodeError{code: exitError, err: err}
	}
	if err := cfg.applyFile(flagSet); err != nil {
		return err
	}

	positional := flagSet.Args()
	if len(positional) < 3 {
		printUsage(stderr, flagSet)
		return &exitCodeError{code: exitError}
	}
	manifestPath, destination, sourcePaths := positional[0], positional[1], positional[2:]

	level, err := parseLevel(cfg.logLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	alg, err := contenthash.ParseAlgorithm(cfg.hash)
	if err != nil {
		return fmt.Errorf("hash: %w", err)
	}
	opts, err := cfg.resolverOptions(logger)
	if err != nil {
		return err
	}

	if info, err := os.Stat(destination); err != nil || !info.IsDir() {
		return fmt.Errorf("destination %q does not exist", destination)
	}

	idx, err := manifest.LoadSMDB(manifestPath, manifest.WithAlgorithm(alg))
	if err != nil {
		return fmt.Errorf("could not read manifest: %w", err)
	}

	r, err := collate.New(idx, destination, opts...)
	if err != nil {
		return err
	}

	sources := make([]collate.Source, 0, len(sourcePaths))
	for _, p := range sourcePaths {
		sources = append(sources, collate.AutoSource(p))
	}
	report, resolveErr := r.Resolve(ctx, sources...)

	fmt.Fprintln(stdout, "Done.")
	fmt.Fprintf(stdout, "Manifest lists %d files.\n", report.Total)
	fmt.Fprintf(stdout, "Found %d files (%.2f%%).\n", report.Matched, report.Percent())
	if report.Stats.Written > 0 {
		fmt.Fprintf(stdout, "Wrote %d files (%s).\n", report.Stats.Written, humanize.IBytes(uint64(report.Stats.BytesWritten)))
	}
	if report.Stats.Oversized > 0 {
		fmt.Fprintf(stdout, "Skipped %d oversized archive entries.\n", report.Stats.Oversized)
	}
	if report.Stats.Conflicts > 0 {
		fmt.Fprintf(stdout, "%d existing files did not match the manifest.\n", report.Stats.Conflicts)
	}

	if cfg.missing != "" {
		if err := writeMissing(cfg.missing, r); err != nil {
			return err
		}
	}

	if resolveErr != nil {
		return resolveErr
	}
	if failed := report.Failed(); failed > 0 {
		for _, res := range report.Sources {
			if res.Err != nil {
				fmt.Fprintf(stderr, "source %s: %v\n", res.Source.Path, res.Err)
			}
		}
		return &exitCodeError{code: exitSourceFailed, err: fmt.Errorf("%d of %d sources failed", failed, len(sources))}
	}
	return nil
}

// writeMissing writes the manifest paths not found, one per line.
func writeMissing(path string, r *collate.Resolver) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create missing list: %w", err)
	}
	w := bufio.NewWriter(f)
	for e := range r.Missing() {
		if _, err := fmt.Fprintln(w, e.Path); err != nil {
			_ = f.Close() //nolint:errcheck // write error takes precedence
			return fmt.Errorf("write missing list: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("write missing list: %w", err)
	}
	return f.Close()
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, `collate - copy manifest-listed files out of directories and archives

USAGE
    collate [flags] <manifest> <destination> <source>...

FLAGS
`)
	fmt.Fprint(w, flagSet.FlagUsages())
}
