// Command refboard manages a catalog of reference images from the command
// line.
//
// Usage:
//
//	refboard <command> [flags]
//
// Commands:
//
//	add      Import image files or directories, deriving color, tone and an embedding
//	list     Page through the gallery, optionally filtered by tag, tone, color
//	search   Substring search on filenames, or similarity search by vector
//	show     Print images by id in the order given
//	update   Change page URL, dominant color, tone or path of an image
//	rm       Remove images
//	tags     list | set | rename | rm
//	order    set | move the gallery order
//	vectors  set | backfill embeddings
//	stats    Catalog statistics, optionally after a VACUUM
//	version  Build information
//
// Output is an aligned table when stdout is a terminal and JSON otherwise
// (or always with --json). Paged commands print a cursor for --after.
//
// Configuration comes from flags, REFBOARD_* environment variables and an
// optional refboard.yaml, in that order of precedence:
//
//	REFBOARD_DATA_DIR       catalog directory (default ./refboard-data)
//	REFBOARD_LIBRARY_DIR    where image files live (default <data>/library)
//	REFBOARD_EMBEDDING_DIM  embedding dimension (default 512)
//	REFBOARD_EMBED_URL      embedding service endpoint
//	LOG_LEVEL               debug, info, warn or error
//	MEMORY_LIMIT            container memory limit used to set GOMEMLIMIT
//
// Exit status is 2 for invalid input, 3 when something was not found, 4 on
// a conflict and 1 for any other failure.
package main
