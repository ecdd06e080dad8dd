// Package startup handles configuration loading and build information for
// the refboard catalog and its CLI.
//
// # Configuration
//
// Configuration is layered by [LoadConfig]: built-in defaults, an optional
// refboard.{yaml,toml,json} file, then REFBOARD_* environment variables.
// The CLI additionally binds its flags onto the same viper instance.
//
//   - REFBOARD_DATA_DIR: Directory holding the catalog database (default: ./refboard-data)
//   - REFBOARD_DATABASE_FILE: Database file name (default: catalog.db)
//   - REFBOARD_LIBRARY_DIR: Root that image relative paths resolve against
//   - REFBOARD_EMBEDDING_DIM: Vector length produced by the embedding service (default: 512)
//   - REFBOARD_VECTOR_OVERFETCH: ANN over-fetch multiplier for filtered vector search (default: 4)
//   - REFBOARD_VECTOR_MAX_CANDIDATES: Cap on ANN candidates per search (default: 1000)
//   - REFBOARD_COLOR_SIMILARITY: Maximum perceptual distance for a color match (default: 0.18)
//   - REFBOARD_COLOR_MAX_HUE_DEGREES: Maximum hue difference for chromatic colors (default: 35)
//   - REFBOARD_COLOR_NEUTRAL_CHROMA: Average chroma below which hue is ignored (default: 0.04)
//   - REFBOARD_DEFAULT_PAGE_SIZE / REFBOARD_MAX_PAGE_SIZE: Pagination limits (100 / 500)
//   - REFBOARD_IMPORT_WORKERS: Import parallelism, 0 = one per CPU
//   - REFBOARD_EMBED_RATE_LIMIT / REFBOARD_EMBED_BURST: Embedding calls per second
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
