package workers

import (
	"runtime"
)

// Count returns the number of workers for a task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//
// A positive configured value (import_workers / REFBOARD_IMPORT_WORKERS)
// overrides the calculation. The limit parameter caps the result; use 0 for
// no limit.
func Count(configured int, multiplier float64, limit int) int {
	if configured > 0 {
		if limit > 0 && configured > limit {
			return limit
		}
		return configured
	}

	// GOMAXPROCS is automatically set to container CPU limit in Go 1.19+
	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU), such as
// decoding and analyzing images.
func ForCPU(configured, limit int) int {
	return Count(configured, 1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU), such as
// calls to the embedding service.
func ForIO(configured, limit int) int {
	return Count(configured, 2.0, limit)
}
