// Package importer adds image files to the catalog.
//
// Each file is decoded, reduced to a dominant color and a tone label,
// inserted, and then embedded through an Embedder whose vector is stored
// in the catalog's ANN index. Files are processed by a bounded pool of
// workers and embedding calls are rate limited.
//
// A failed embedding does not fail the import: the image is kept without a
// vector and BackfillVectors embeds it on a later run. BackfillVectors
// resolves files against the configured library directory.
//
// Collect turns command line arguments into the file list, walking
// directories for supported image extensions.
//
// When a memory.Monitor is attached, every decode waits while the monitor
// reports memory pressure.
//
// Only one Import or BackfillVectors call runs at a time per Importer.
package importer
