package startup

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"fireshare/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is left for ffmpeg subprocesses.
const DefaultMemoryRatio = 0.25

// MemoryConfig reports how GOMEMLIMIT was configured.
type MemoryConfig struct {
	Configured bool
	// Source is "GOMEMLIMIT", "MEMORY_LIMIT" or "none".
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// ConfigureMemoryLimit sets the Go memory limit from MEMORY_LIMIT (bytes,
// typically from the Kubernetes Downward API) scaled by MEMORY_RATIO. An
// explicit GOMEMLIMIT takes precedence. Call it before significant
// allocations.
func ConfigureMemoryLimit() MemoryConfig {
	if env := os.Getenv("GOMEMLIMIT"); env != "" {
		result := MemoryConfig{Source: "GOMEMLIMIT"}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		return result
	}

	raw := os.Getenv("MEMORY_LIMIT")
	if raw == "" {
		return MemoryConfig{Source: "none"}
	}

	containerLimit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || containerLimit <= 0 {
		logging.Warn("Failed to parse MEMORY_LIMIT %q", raw)
		return MemoryConfig{Source: "none"}
	}

	ratio := parseRatio(os.Getenv("MEMORY_RATIO"))
	limit := int64(float64(containerLimit) * ratio)
	debug.SetMemoryLimit(limit)

	return MemoryConfig{
		Configured:     true,
		Source:         "MEMORY_LIMIT",
		ContainerLimit: containerLimit,
		GoMemLimit:     limit,
		Ratio:          ratio,
	}
}

func parseRatio(raw string) float64 {
	if raw == "" {
		return DefaultMemoryRatio
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio <= 0 || ratio > 1 {
		logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0], using default %.2f", raw, DefaultMemoryRatio)
		return DefaultMemoryRatio
	}
	return ratio
}

// LogMemoryConfig logs the outcome of ConfigureMemoryLimit.
func LogMemoryConfig(cfg MemoryConfig) {
	switch cfg.Source {
	case "GOMEMLIMIT":
		logging.Info("  GOMEMLIMIT set via environment: %s", formatBytes(cfg.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  Configured GOMEMLIMIT: %s (%.0f%% of %s container limit)",
			formatBytes(cfg.GoMemLimit), cfg.Ratio*100, formatBytes(cfg.ContainerLimit))
	default:
		logging.Debug("  MEMORY_LIMIT not set, GOMEMLIMIT not configured")
	}
}

// formatBytes formats bytes into human-readable string
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
