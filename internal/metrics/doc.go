// Package metrics provides Prometheus instrumentation for the refboard catalog.
//
// All metrics are prefixed with "refboard_" and registered on the default
// registry through promauto.
//
// # Metric Categories
//
// ## Database Metrics
//
//   - DBQueryTotal: Counter of catalog operations by operation and status
//   - DBQueryDuration: Histogram of operation duration
//   - DBTransactionDuration: Histogram of transaction duration by commit/rollback
//   - DBRowsAffected: Histogram of rows touched by write statements
//   - DBConnectionsOpen: Gauge of open database connections
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//
// ## Catalog Metrics
//
//   - CatalogImagesTotal, CatalogOrderedImages, CatalogTagsTotal, CatalogVectorsTotal
//
// ## Search Metrics
//
//   - SearchRequestsTotal / SearchResultsReturned by query shape
//   - VectorIndexAvailable: 1 when the ANN extension loaded, 0 when degraded
//   - VectorSearchCandidates / VectorSearchRefetches: ANN over-fetch behavior
//
// ## Import Metrics
//
//   - ImportTotal, ImportDuration, ImportIsRunning, EmbedRequestsTotal
//
// ## Runtime Metrics
//
//   - FilesystemStaleErrors / FilesystemRetryAttempts / FilesystemRetryFailures
//     by operation, for libraries on NFS mounts
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses from the import
//     backpressure monitor
//
// # Collector
//
// [Collector] periodically pulls [Stats] from a [StatsProvider] (the catalog)
// and refreshes the gauges:
//
//	collector := metrics.NewCollector(cat, dbPath, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// Example PromQL for ANN headroom:
//
//	rate(refboard_vector_search_refetches_total[1h]) /
//	rate(refboard_search_requests_total{shape="vector"}[1h])
package metrics
