package importer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"refboard/internal/analysis"
	"refboard/internal/catalog"
	"refboard/internal/logging"
	"refboard/internal/memory"
	"refboard/internal/metrics"
	"refboard/internal/workers"
)

const (
	// Upper bound on decode/analyze workers regardless of CPU count
	maxImportWorkers = 8

	// Upper bound on concurrent embedding calls during backfill
	maxEmbedWorkers = 16
)

var (
	// ErrBusy is returned when an import or backfill is already running.
	ErrBusy = errors.New("import already running")

	// ErrNoEmbedder is returned by BackfillVectors when no embedder is set.
	ErrNoEmbedder = errors.New("no embedder configured")
)

// Embedder turns pixels into a vector of the catalog's embedding dimension.
type Embedder interface {
	Embed(ctx context.Context, img image.Image) ([]float32, error)
}

// Request describes one file to import.
type Request struct {
	// Path is the file on disk.
	Path string

	// Optional overrides. An empty RelativePath is derived from Path and
	// the library directory.
	ID           string
	RelativePath string
	PageURL      *string
	CreatedAt    int64
	Tags         []string
}

// ItemError records a per-file failure.
type ItemError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (e ItemError) Error() string {
	return e.Path + ": " + e.Err.Error()
}

// Result summarizes an Import call.
type Result struct {
	Imported []*catalog.Image `json:"imported"`
	Skipped  []string         `json:"skipped,omitempty"`
	Failed   []ItemError      `json:"failed,omitempty"`
}

// BackfillResult summarizes a BackfillVectors call.
type BackfillResult struct {
	Embedded int         `json:"embedded"`
	Failed   []ItemError `json:"failed,omitempty"`
}

// Importer decodes image files, derives their color and tone, inserts them
// into the catalog and stores their embeddings.
type Importer struct {
	cat      *catalog.Catalog
	embedder Embedder
	colors   analysis.ColorEstimator
	tones    analysis.ToneEstimator
	limiter  *rate.Limiter
	monitor  *memory.Monitor

	libraryDir   string
	numWorkers   int
	embedWorkers int

	running atomic.Bool
}

// Option configures an Importer.
type Option func(*Importer)

// WithEmbedder sets the embedding collaborator. Without one, images are
// imported without vectors.
func WithEmbedder(e Embedder) Option {
	return func(imp *Importer) { imp.embedder = e }
}

// WithEstimators replaces the default color and tone estimators.
func WithEstimators(ce analysis.ColorEstimator, te analysis.ToneEstimator) Option {
	return func(imp *Importer) {
		imp.colors = ce
		imp.tones = te
	}
}

// WithRateLimiter replaces the embed rate limiter built from the config.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(imp *Importer) { imp.limiter = l }
}

// WithMemoryMonitor makes workers wait for memory pressure to ease before
// decoding each image.
func WithMemoryMonitor(m *memory.Monitor) Option {
	return func(imp *Importer) { imp.monitor = m }
}

// New creates an Importer for cat, sized from the catalog's config.
func New(cat *catalog.Catalog, opts ...Option) *Importer {
	cfg := cat.Config()
	imp := &Importer{
		cat:          cat,
		colors:       analysis.DominantColor{},
		tones:        analysis.Tone{},
		limiter:      rate.NewLimiter(rate.Limit(cfg.EmbedRateLimit), cfg.EmbedBurst),
		libraryDir:   cfg.LibraryDir,
		numWorkers:   workers.ForCPU(cfg.ImportWorkers, maxImportWorkers),
		embedWorkers: workers.ForIO(cfg.ImportWorkers, maxEmbedWorkers),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// IsRunning reports whether an import or backfill is in progress.
func (imp *Importer) IsRunning() bool {
	return imp.running.Load()
}

func (imp *Importer) begin() bool {
	if !imp.running.CompareAndSwap(false, true) {
		return false
	}
	metrics.ImportIsRunning.Set(1)
	return true
}

func (imp *Importer) end() {
	metrics.ImportIsRunning.Set(0)
	imp.running.Store(false)
}

// Import processes reqs in parallel. Files whose relative path or id already
// exist are skipped; other per-file failures are collected in the result.
// The returned error is non-nil only when ctx is cancelled.
func (imp *Importer) Import(ctx context.Context, reqs []Request) (Result, error) {
	if !imp.begin() {
		return Result{}, ErrBusy
	}
	defer imp.end()

	logging.Info("Starting import of %d images with %d workers", len(reqs), imp.numWorkers)
	startTime := time.Now()

	var (
		mu  sync.Mutex
		res Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.numWorkers)
	for _, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := imp.importOne(gctx, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Imported = append(res.Imported, img)
				metrics.ImportTotal.WithLabelValues("success").Inc()
			case errors.Is(err, catalog.ErrConflict):
				res.Skipped = append(res.Skipped, req.Path)
				metrics.ImportTotal.WithLabelValues("skipped").Inc()
				logging.Debug("Skipping %s: already in catalog", req.Path)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				res.Failed = append(res.Failed, ItemError{Path: req.Path, Err: err})
				metrics.ImportTotal.WithLabelValues("error").Inc()
				logging.Warn("Failed to import %s: %v", req.Path, err)
			}
			return nil
		})
	}
	err := g.Wait()

	slices.SortFunc(res.Imported, func(a, b *catalog.Image) int { return cmp.Compare(a.RowID, b.RowID) })

	logging.Info("Import complete: %d imported, %d skipped, %d failed in %v",
		len(res.Imported), len(res.Skipped), len(res.Failed), time.Since(startTime))
	return res, err
}

func (imp *Importer) importOne(ctx context.Context, req Request) (*catalog.Image, error) {
	start := time.Now()
	defer func() {
		metrics.ImportDuration.Observe(time.Since(start).Seconds())
	}()

	pic, err := imp.decode(ctx, req.Path)
	if err != nil {
		return nil, err
	}

	in := catalog.NewImage{
		ID:           req.ID,
		Filename:     filepath.Base(req.Path),
		RelativePath: imp.relativePath(req),
		CreatedAt:    req.CreatedAt,
		PageURL:      req.PageURL,
		Tags:         req.Tags,
	}

	a, err := analysis.Analyze(pic, imp.colors, imp.tones)
	switch {
	case err == nil:
		in.DominantColor = &a.Hex
		in.Tone = &a.Tone
	case errors.Is(err, analysis.ErrNoPixels):
		logging.Debug("No opaque pixels in %s, importing without color", req.Path)
	default:
		return nil, fmt.Errorf("analyze: %w", err)
	}

	created, err := imp.cat.InsertImage(ctx, in)
	if err != nil {
		return nil, err
	}

	if imp.embedder != nil && imp.cat.IndexAvailable() {
		// the row stays without a vector; BackfillVectors picks it up later
		if err := imp.embedAndStore(ctx, created.RowID, pic); err != nil {
			logging.Warn("Imported %s without embedding: %v", created.ID, err)
		}
	}
	return created, nil
}

// relativePath keeps paths under the library directory relative to it and
// falls back to the bare filename for files elsewhere.
func (imp *Importer) relativePath(req Request) string {
	if req.RelativePath != "" {
		return filepath.ToSlash(req.RelativePath)
	}
	if imp.libraryDir != "" {
		abs, err := filepath.Abs(req.Path)
		if err == nil {
			rel, err := filepath.Rel(imp.libraryDir, abs)
			if err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
				return filepath.ToSlash(rel)
			}
		}
	}
	return filepath.Base(req.Path)
}

func (imp *Importer) embedAndStore(ctx context.Context, rowid int64, pic image.Image) error {
	if err := imp.limiter.Wait(ctx); err != nil {
		return err
	}
	vec, err := imp.embedder.Embed(ctx, pic)
	if err != nil {
		metrics.EmbedRequestsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("embed: %w", err)
	}
	metrics.EmbedRequestsTotal.WithLabelValues("success").Inc()
	return imp.cat.SetImageVector(ctx, rowid, vec)
}

// BackfillVectors embeds every catalog image that has no vector yet,
// reading files from the library directory.
func (imp *Importer) BackfillVectors(ctx context.Context) (BackfillResult, error) {
	if imp.embedder == nil {
		return BackfillResult{}, ErrNoEmbedder
	}
	if !imp.begin() {
		return BackfillResult{}, ErrBusy
	}
	defer imp.end()

	missing, err := imp.cat.ImagesMissingVectors(ctx)
	if err != nil {
		return BackfillResult{}, err
	}
	if len(missing) == 0 {
		return BackfillResult{}, nil
	}
	logging.Info("Backfilling vectors for %d images with %d workers", len(missing), imp.embedWorkers)

	var (
		mu  sync.Mutex
		res BackfillResult
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imp.embedWorkers)
	for _, img := range missing {
		g.Go(func() error {
			path := filepath.Join(imp.libraryDir, filepath.FromSlash(img.RelativePath))
			err := imp.backfillOne(gctx, img.RowID, path)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Embedded++
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				res.Failed = append(res.Failed, ItemError{Path: path, Err: err})
				logging.Warn("Failed to embed %s: %v", img.ID, err)
			}
			return nil
		})
	}
	err = g.Wait()

	logging.Info("Backfill complete: %d embedded, %d failed", res.Embedded, len(res.Failed))
	return res, err
}

func (imp *Importer) backfillOne(ctx context.Context, rowid int64, path string) error {
	pic, err := imp.decode(ctx, path)
	if err != nil {
		return err
	}
	return imp.embedAndStore(ctx, rowid, pic)
}

func (imp *Importer) decode(ctx context.Context, path string) (image.Image, error) {
	if imp.monitor != nil {
		if err := imp.monitor.WaitIfPaused(ctx); err != nil {
			return nil, err
		}
	}
	return analysis.Decode(ctx, path)
}
