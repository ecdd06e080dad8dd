package memory

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"

	"refboard/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest covers SQLite page cache, cgo allocations and stacks.
const DefaultMemoryRatio = 0.85

// ConfigResult reports what ConfigureFromEnv did.
type ConfigResult struct {
	Configured     bool
	Source         string // "GOMEMLIMIT", "MEMORY_LIMIT" or "none"
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureFromEnv sets the Go soft memory limit from MEMORY_LIMIT and
// MEMORY_RATIO unless GOMEMLIMIT is already set. Call it first in main.
func ConfigureFromEnv() ConfigResult {
	return configure(os.Getenv, debug.SetMemoryLimit)
}

func configure(getenv func(string) string, setLimit func(int64) int64) ConfigResult {
	if env := getenv("GOMEMLIMIT"); env != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", env)
		return ConfigResult{Configured: true, Source: "GOMEMLIMIT", GoMemLimit: setLimit(-1)}
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, leaving GOMEMLIMIT unset")
		return ConfigResult{Source: "none"}
	}
	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Ignoring invalid MEMORY_LIMIT %q", raw)
		return ConfigResult{Source: "none"}
	}

	ratio, err := parseRatio(getenv("MEMORY_RATIO"))
	if err != nil {
		logging.Warn("%v, using default %.2f", err, DefaultMemoryRatio)
	}

	limit := int64(float64(containerLimit) * ratio)
	setLimit(limit)
	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(limit), ratio*100, formatBytes(containerLimit))

	return ConfigResult{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

// parseRatio returns DefaultMemoryRatio for an empty value and on error.
func parseRatio(raw string) (float64, error) {
	if raw == "" {
		return DefaultMemoryRatio, nil
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return DefaultMemoryRatio, fmt.Errorf("invalid MEMORY_RATIO %q: %w", raw, err)
	}
	if ratio <= 0 || ratio > 1 {
		return DefaultMemoryRatio, fmt.Errorf("MEMORY_RATIO %q out of range (0, 1]", raw)
	}
	return ratio, nil
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
