package transcoder

import (
	"context"
	"math"
	"time"

	"fireshare/internal/logging"
)

const (
	// DefaultBaseTimeout applies when the source duration is unknown.
	DefaultBaseTimeout = 2 * time.Hour
	// MinTranscodeTimeout is the floor for duration-derived timeouts.
	MinTranscodeTimeout = 10 * time.Minute
	// MaxTranscodeTimeout is the ceiling for duration-derived timeouts.
	MaxTranscodeTimeout = 8 * time.Hour

	// timeoutPerSourceSecond assumes 20x real-time CPU encoding with a 3x margin.
	timeoutPerSourceSecond = 60
)

// timeoutForDuration derives an encode budget from the source duration in
// seconds; ok=false, NaN and infinite durations fall back to base. The
// clamp is applied in float seconds so bogus huge durations cannot overflow.
func timeoutForDuration(duration float64, ok bool, base time.Duration) time.Duration {
	if !ok || math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return base
	}

	secs := math.Trunc(duration * timeoutPerSourceSecond)
	secs = math.Max(secs, MinTranscodeTimeout.Seconds())
	secs = math.Min(secs, MaxTranscodeTimeout.Seconds())
	return time.Duration(secs) * time.Second
}

// EstimateTimeout returns the wall-clock budget for encoding path: sixty
// times its duration clamped to [10m, 8h], or base when the duration
// cannot be probed.
func (t *Transcoder) EstimateTimeout(ctx context.Context, path string, base time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBaseTimeout
	}

	duration, ok := t.prober.ProbeDuration(ctx, path)
	timeout := timeoutForDuration(duration, ok, base)
	if ok {
		logging.Debug("Calculated transcode timeout: %s for video duration %.1fs", timeout, duration)
	} else {
		logging.Debug("Could not determine video duration, using base timeout: %s", base)
	}
	return timeout
}
