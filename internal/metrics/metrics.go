package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refboard_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refboard_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refboard_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"result"}, // "commit" or "rollback"
	)

	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refboard_db_rows_affected",
			Help:    "Rows affected by write statements",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "refboard_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Catalog metrics
var (
	CatalogImagesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_catalog_images_total",
			Help: "Number of images in the catalog",
		},
	)

	CatalogOrderedImages = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_catalog_ordered_images",
			Help: "Number of images with an explicit gallery position",
		},
	)

	CatalogTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_catalog_tags_total",
			Help: "Number of distinct tags in the catalog",
		},
	)

	CatalogVectorsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_catalog_vectors_total",
			Help: "Number of images with an embedding vector",
		},
	)
)

// Search metrics
var (
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refboard_search_requests_total",
			Help: "Total number of catalog queries by shape",
		},
		[]string{"shape"}, // "list", "text", "vector", "ids"
	)

	SearchResultsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refboard_search_results_returned",
			Help:    "Rows returned per catalog query page",
			Buckets: []float64{0, 1, 10, 25, 50, 100, 200, 500},
		},
		[]string{"shape"},
	)

	VectorIndexAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_vector_index_available",
			Help: "Whether the ANN index loaded (1 = available, 0 = degraded)",
		},
	)

	VectorSearchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refboard_vector_search_candidates",
			Help:    "Number of ANN candidates fetched per vector search attempt",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2000, 4096},
		},
	)

	VectorSearchRefetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refboard_vector_search_refetches_total",
			Help: "Times a vector search widened its ANN fetch after post-filtering",
		},
	)
)

// Import metrics
var (
	ImportTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refboard_import_total",
			Help: "Total number of image imports by status",
		},
		[]string{"status"}, // "success", "error", "skipped"
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refboard_import_duration_seconds",
			Help:    "Per-image import duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	EmbedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refboard_embed_requests_total",
			Help: "Total number of embedding service calls by status",
		},
		[]string{"status"},
	)

	ImportIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_import_running",
			Help: "Whether an import batch is running (1 = running, 0 = idle)",
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refboard_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after an NFS stale file handle",
		},
		[]string{"operation"}, // "stat", "open"
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refboard_filesystem_retry_failures_total",
			Help: "Filesystem operations that still failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refboard_filesystem_stale_errors_total",
			Help: "NFS stale file handle errors seen",
		},
		[]string{"operation"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "refboard_memory_paused",
			Help: "Whether imports are paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "refboard_memory_gc_pauses_total",
			Help: "Times imports paused and forced a GC because memory was critical",
		},
	)
)
