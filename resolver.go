package collate

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"slices"

	"github.com/meigma/collate/internal/archive"
	"github.com/meigma/collate/internal/sink"
	"github.com/meigma/collate/manifest"
)

// Hash is a content digest as stored in the manifest.
type Hash = manifest.Hash

// Resolver matches candidate inputs against a manifest and writes matches
// below an output directory.
//
// The found set persists across calls, so resolving the same sources twice
// writes nothing the second time.
type Resolver struct {
	index   *manifest.Index
	sink    *sink.FileSink
	decoder *archive.Decoder
	found   map[Hash]struct{}

	maxDepth         int
	maxEntrySize     int64
	maxDecoderMemory uint64
	formats          []Format
	formatsSet       bool
	verifyExisting   bool
	matchContainers  bool

	progress ProgressFunc
	logger   *slog.Logger
}

// New creates a Resolver for idx that materializes matches below outputDir.
//
// outputDir must exist before resolving; it is not checked here.
func New(idx *manifest.Index, outputDir string, opts ...Option) (*Resolver, error) {
	if idx == nil {
		return nil, errors.New("collate: nil manifest index")
	}
	if outputDir == "" {
		return nil, errors.New("collate: empty output directory")
	}

	r := &Resolver{
		index:        idx,
		sink:         sink.NewFileSink(outputDir),
		found:        make(map[Hash]struct{}),
		maxDepth:     DefaultMaxDepth,
		maxEntrySize: DefaultMaxEntrySize,
	}
	for _, opt := range opts {
		opt(r)
	}

	decOpts := []archive.Option{archive.WithMaxDecoderMemory(r.maxDecoderMemory)}
	if r.formatsSet {
		decOpts = append(decOpts, archive.WithFormats(r.formats...))
	}
	r.decoder = archive.NewDecoder(decOpts...)
	return r, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Resolver) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// reportProgress sends a progress event if a callback is configured.
func (r *Resolver) reportProgress(stage ProgressStage, source, path string) {
	if r.progress == nil {
		return
	}
	r.progress(ProgressEvent{
		Stage:   stage,
		Source:  source,
		Path:    path,
		Matched: len(r.found),
		Total:   r.index.Len(),
	})
}

// OutputDir returns the directory matches are written to.
func (r *Resolver) OutputDir() string {
	return r.sink.Dir()
}

// Matched returns the number of manifest hashes found so far.
func (r *Resolver) Matched() int {
	return len(r.found)
}

// Total returns the number of distinct hashes in the manifest.
func (r *Resolver) Total() int {
	return r.index.Len()
}

// Found returns the hashes found so far, in byte order.
func (r *Resolver) Found() iter.Seq[Hash] {
	hashes := make([]Hash, 0, len(r.found))
	for h := range r.found {
		hashes = append(hashes, h)
	}
	slices.SortFunc(hashes, func(a, b Hash) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Values(hashes)
}

// Missing returns the manifest entries whose hash has not been found,
// sorted by path.
func (r *Resolver) Missing() iter.Seq[manifest.Entry] {
	return func(yield func(manifest.Entry) bool) {
		for e := range r.index.Entries() {
			if _, ok := r.found[e.Hash]; ok {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// ResolveSource resolves a single root source and returns its stats.
//
// On error, matches made before the failure stay materialized and remain in
// the found set.
func (r *Resolver) ResolveSource(src Source) (Stats, error) {
	t := &traversal{r: r, source: src.Path}
	r.log().Info("resolving source", "path", src.Path, "kind", src.Kind.String())
	r.reportProgress(StageSource, src.Path, src.Path)

	err := t.resolve(src)
	t.stats.Matched = len(r.found)
	t.stats.Total = r.index.Len()
	if err != nil {
		r.log().Error("source failed", "path", src.Path, "found", t.stats.Found, "error", err)
		return t.stats, err
	}
	r.log().Info("source resolved",
		"path", src.Path,
		"files", t.stats.Files,
		"containers", t.stats.Containers,
		"found", t.stats.Found,
		"matched", t.stats.Matched,
		"total", t.stats.Total)
	return t.stats, nil
}

// Resolve resolves sources in order.
//
// A failing source is recorded in the report and the run continues with the
// next one. ctx is checked between sources; if it is done, Resolve stops and
// returns the partial report along with ctx.Err().
func (r *Resolver) Resolve(ctx context.Context, sources ...Source) (*Report, error) {
	report := &Report{
		Sources: make([]SourceResult, 0, len(sources)),
	}
	var err error
	for _, src := range sources {
		if err = ctx.Err(); err != nil {
			break
		}
		stats, srcErr := r.ResolveSource(src)
		report.Sources = append(report.Sources, SourceResult{Source: src, Stats: stats, Err: srcErr})
		report.Stats.add(stats)
	}
	report.Matched = len(r.found)
	report.Total = r.index.Len()
	report.Stats.Matched = report.Matched
	report.Stats.Total = report.Total
	return report, err
}
