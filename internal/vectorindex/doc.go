// Package vectorindex abstracts the approximate nearest-neighbor engine used
// for semantic image search.
//
// Three implementations satisfy Index:
//   - SQLiteVec: a sqlite-vec vec0 table inside the catalog database
//   - Memory: brute-force cosine search, for tests and builds without sqlite-vec
//   - Unavailable: the degraded stub used when the extension fails to load
//
// Vectors are keyed by the image's integer rowid. Distances are cosine
// distances; callers convert to a score with 1 - distance.
package vectorindex
