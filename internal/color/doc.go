// Package color converts sRGB hex colors to OKLCH and implements the
// perceptual similarity gate used by color-filtered queries.
//
// A candidate matches a target when the hue difference is within
// FilterConfig.MaxHueDiff (skipped for near-neutral pairs) and the combined
// lightness, chroma and hue-chord distance is within the similarity threshold.
// The same Predicate backs the color_match SQL function.
package color
