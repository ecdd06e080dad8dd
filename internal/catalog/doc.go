// Package catalog is the image catalog and hybrid search engine.
//
// A Catalog stores per-image metadata, tags and embedding vectors and answers
// four query shapes:
//   - ListImages: the gallery in manual order, unordered images first
//   - SearchText: substring match on filename and path, newest first
//   - SearchVector: nearest neighbors of an embedding, most similar first
//   - GetImagesByIDs: explicit ids in the caller's order
//
// Every shape except by-id accepts a Filter (tags with AND semantics, tone,
// perceptual color) and pages with a typed keyset cursor, so a cursor from
// one shape cannot be passed to another.
//
// Multi-statement mutations run in a single transaction. Failures are
// returned as *OpError values that match one of the Err* kinds with
// errors.Is.
package catalog
