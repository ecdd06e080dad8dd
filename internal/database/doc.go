// Package database provides the SQLite storage handle for the refboard
// catalog.
//
// It handles:
//   - Opening or creating the catalog file and its parent directories
//   - Schema creation and column migrations (idempotent)
//   - All-or-nothing transactions via WithTx
//   - The color_match SQL function registered on every connection
//   - A read-through settings cache passed to callers as a dependency
//
// The database uses WAL mode so readers never block behind the single writer.
package database
