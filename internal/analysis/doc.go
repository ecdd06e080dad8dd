// Package analysis decodes image files and derives the metadata the catalog
// stores alongside them: a dominant color and a tone label.
//
// Decoding honors EXIF orientation and downscales very large images before
// any pixel work. Estimators run on a further reduced sample and skip
// pixels that are mostly transparent.
package analysis
