package catalog

import (
	"context"
	"time"

	"refboard/internal/color"
	"refboard/internal/database"
	"refboard/internal/logging"
	"refboard/internal/metrics"
	"refboard/internal/startup"
	"refboard/internal/vectorindex"
)

// Catalog is the public entry point for image, tag, search and gallery
// operations. It is safe for concurrent use; the store serializes writers.
type Catalog struct {
	db       *database.Database
	index    vectorindex.Index
	settings *database.Settings
	cfg      *startup.Config
	colorCfg color.FilterConfig
}

type options struct {
	index  vectorindex.Index
	dbOpts *database.Options
}

// Option customizes New.
type Option func(*options)

// WithIndex installs idx instead of probing for sqlite-vec.
func WithIndex(idx vectorindex.Index) Option {
	return func(o *options) { o.index = idx }
}

// WithDatabaseOptions passes storage options through to database.Open.
func WithDatabaseOptions(opts *database.Options) Option {
	return func(o *options) { o.dbOpts = opts }
}

// New opens the catalog described by cfg. A storage failure is fatal and
// wraps ErrStorageUnavailable. A missing ANN engine is not: vector searches
// then return nothing.
func New(ctx context.Context, cfg *startup.Config, opts ...Option) (*Catalog, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &OpError{Op: "open", Kind: ErrInvalidInput, Err: err}
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	db, err := database.Open(ctx, cfg.DatabasePath(), o.dbOpts)
	if err != nil {
		return nil, &OpError{Op: "open", Key: cfg.DatabasePath(), Kind: ErrStorageUnavailable, Err: err}
	}

	c := &Catalog{
		db:       db,
		settings: database.NewSettings(db.DB()),
		cfg:      cfg,
		colorCfg: color.FilterConfig{
			SimilarityThreshold: cfg.ColorSimilarity,
			MaxHueDiff:          cfg.ColorMaxHueRadians(),
			NeutralChroma:       cfg.ColorNeutralChroma,
		},
	}

	if err := c.checkEmbeddingDim(ctx); err != nil {
		db.Close()
		return nil, err
	}

	c.index = o.index
	if c.index == nil {
		sv, err := vectorindex.NewSQLiteVec(ctx, db.DB(), cfg.EmbeddingDim)
		if err != nil {
			logging.Warn("Vector search disabled: %v", err)
			c.index = vectorindex.NewUnavailable(cfg.EmbeddingDim, err)
		} else {
			c.index = sv
		}
	}
	if c.index.Dimensions() != cfg.EmbeddingDim {
		db.Close()
		return nil, invalid("open", "", "index dimension %d does not match embedding_dim %d",
			c.index.Dimensions(), cfg.EmbeddingDim)
	}

	if c.index.Available() {
		metrics.VectorIndexAvailable.Set(1)
	} else {
		metrics.VectorIndexAvailable.Set(0)
	}
	return c, nil
}

// checkEmbeddingDim records the embedding dimension on first open and
// refuses to reopen a catalog with a different one.
func (c *Catalog) checkEmbeddingDim(ctx context.Context) error {
	stored, ok, err := c.settings.GetInt(ctx, database.SettingEmbeddingDim)
	if err != nil {
		return &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: err}
	}
	if !ok {
		if err := c.settings.SetInt(ctx, database.SettingEmbeddingDim, c.cfg.EmbeddingDim); err != nil {
			return &OpError{Op: "open", Kind: ErrStorageUnavailable, Err: err}
		}
		return nil
	}
	if stored != c.cfg.EmbeddingDim {
		return invalid("open", c.cfg.DatabasePath(),
			"catalog was built with embedding_dim %d, configured %d", stored, c.cfg.EmbeddingDim)
	}
	return nil
}

// Close releases the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Config returns the configuration the catalog was opened with.
func (c *Catalog) Config() *startup.Config {
	return c.cfg
}

// Database exposes the storage handle for maintenance commands.
func (c *Catalog) Database() *database.Database {
	return c.db
}

// IndexAvailable reports whether vector search is backed by a real index.
func (c *Catalog) IndexAvailable() bool {
	return c.index.Available()
}

// Stats counts images, ordered images, tags and vectors.
func (c *Catalog) Stats(ctx context.Context) (Stats, error) {
	s := Stats{IndexReady: c.index.Available()}
	err := c.db.DB().QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM images),
			(SELECT COUNT(*) FROM images WHERE gallery_order IS NOT NULL),
			(SELECT COUNT(*) FROM tags)
	`).Scan(&s.TotalImages, &s.OrderedImages, &s.TotalTags)
	if err != nil {
		return Stats{}, wrapErr("stats", "", err)
	}
	s.TotalVectors, err = c.index.Count(ctx, c.db.DB())
	if err != nil {
		return Stats{}, wrapErr("stats", "", err)
	}
	return s, nil
}

// UpdateDBMetrics implements metrics.DBStatsUpdater.
func (c *Catalog) UpdateDBMetrics() {
	c.db.UpdateDBMetrics()
}

// GetStats implements metrics.StatsProvider.
func (c *Catalog) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := c.Stats(ctx)
	if err != nil {
		logging.Warn("Failed to collect catalog stats: %v", err)
		return metrics.Stats{IndexReady: c.index.Available()}
	}
	return metrics.Stats{
		TotalImages:   s.TotalImages,
		OrderedImages: s.OrderedImages,
		TotalTags:     s.TotalTags,
		TotalVectors:  s.TotalVectors,
		IndexReady:    s.IndexReady,
	}
}
