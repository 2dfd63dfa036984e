package transcoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"fireshare/internal/logging"
	"fireshare/internal/metrics"
)

// DefaultValidationTimeout bounds each validation subprocess.
const DefaultValidationTimeout = 30 * time.Second

// decodeTestSeconds is how much of the source the decode test reads.
const decodeTestSeconds = "2"

// stderrExcerptLen caps how much decoder output ends up in a reason.
const stderrExcerptLen = 200

// corruptionIndicators are ffmpeg messages that indicate a damaged source.
// Order matters: the first match names the failure.
var corruptionIndicators = []string{
	"Corrupt frame detected",
	"No sequence header",
	"Error submitting packet to decoder",
	"Invalid data found when processing input",
	"Decode error rate",
	"moov atom not found",
	"Invalid NAL unit size",
	"non-existing PPS",
	"Could not find codec parameters",
}

// av1FalsePositives are indicators emitted while decoding the first frames
// of valid AV1 files. Lowercase.
var av1FalsePositives = map[string]bool{
	"corrupt frame detected":             true,
	"no sequence header":                 true,
	"error submitting packet to decoder": true,
	"decode error rate":                  true,
	"invalid nal unit size":              true,
	"non-existing pps":                   true,
}

// av1CodecNames are codec names ffprobe reports for AV1 streams. Lowercase.
var av1CodecNames = map[string]bool{
	"av1":        true,
	"libaom-av1": true,
	"libsvtav1":  true,
	"av1_nvenc":  true,
	"av1_qsv":    true,
}

// ValidationKind classifies why a source failed validation.
type ValidationKind int

const (
	// KindToolMissing means ffprobe or ffmpeg is not on PATH.
	KindToolMissing ValidationKind = iota
	// KindNotFound means the source file does not exist.
	KindNotFound
	// KindMetadata means stream metadata could not be read.
	KindMetadata
	// KindCorrupt means the decode test matched a corruption indicator.
	KindCorrupt
	// KindDecodeFailed means the decode test failed without a known indicator.
	KindDecodeFailed
	// KindTimeout means a validation subprocess hit its deadline.
	KindTimeout
	// KindInternal covers anything else (cancellation, start failures).
	KindInternal
)

// String returns the metric label for the kind.
func (k ValidationKind) String() string {
	switch k {
	case KindToolMissing:
		return "tool_missing"
	case KindNotFound:
		return "not_found"
	case KindMetadata:
		return "metadata"
	case KindCorrupt:
		return "corrupt"
	case KindDecodeFailed:
		return "decode_failed"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// ValidationError describes a failed validation. Error returns the
// human-readable reason.
type ValidationError struct {
	Kind   ValidationKind
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErr(kind ValidationKind, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Validator checks that a source can be decoded before encoder time is
// spent on it: a metadata probe followed by a short decode test.
type Validator struct {
	runner   Runner
	lookPath func(string) (string, error)
}

// NewValidator creates a Validator. A nil lookPath uses exec.LookPath.
func NewValidator(runner Runner, lookPath func(string) (string, error)) *Validator {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	return &Validator{runner: runner, lookPath: lookPath}
}

// Validate returns nil when path looks decodable, or a *ValidationError.
func (v *Validator) Validate(ctx context.Context, path string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultValidationTimeout
	}

	verr := v.validate(ctx, path, timeout)
	if verr == nil {
		metrics.TranscoderValidationsTotal.WithLabelValues("valid").Inc()
		return nil
	}

	metrics.TranscoderValidationsTotal.WithLabelValues(verr.Kind.String()).Inc()
	return verr
}

func (v *Validator) validate(ctx context.Context, path string, timeout time.Duration) *ValidationError {
	for _, tool := range []string{"ffprobe", "ffmpeg"} {
		if _, err := v.lookPath(tool); err != nil {
			return validationErr(KindToolMissing, "%s command not found - ensure ffmpeg is installed", tool)
		}
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return validationErr(KindNotFound, "Video file not found")
		}
		return validationErr(KindInternal, "Validation error: %v", err)
	}

	probeArgs := []string{
		"-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height",
		"-of", "json", path,
	}
	logging.Debug("Validating video file: ffprobe %s", strings.Join(probeArgs, " "))

	probe, err := v.run(ctx, timeout, "ffprobe", probeArgs...)
	if err != nil {
		return runFailure(err, timeout)
	}
	if probe.ExitCode != 0 {
		msg := strings.TrimSpace(probe.Stderr)
		if msg == "" {
			msg = "Unknown error reading video metadata"
		}
		return validationErr(KindMetadata, "ffprobe failed: %s", msg)
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(probe.Stdout), &out); err != nil {
		return validationErr(KindMetadata, "Failed to parse video metadata")
	}
	if len(out.Streams) == 0 {
		return validationErr(KindMetadata, "No video streams found in file")
	}

	isAV1 := av1CodecNames[strings.ToLower(out.Streams[0].CodecName)]

	decodeArgs := []string{"-v", "error", "-t", decodeTestSeconds, "-i", path, "-f", "null", "-"}
	logging.Debug("Decode test: ffmpeg %s", strings.Join(decodeArgs, " "))

	decode, err := v.run(ctx, timeout, "ffmpeg", decodeArgs...)
	if err != nil {
		return runFailure(err, timeout)
	}

	return classifyDecode(isAV1, decode.ExitCode, strings.TrimSpace(decode.Stderr))
}

func (v *Validator) run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return v.runner.Run(ctx, name, args...)
}

func runFailure(err error, timeout time.Duration) *ValidationError {
	if errors.Is(err, ErrTimeout) {
		return validationErr(KindTimeout, "Validation timed out after %d seconds", int(timeout.Seconds()))
	}
	return validationErr(KindInternal, "Validation error: %v", err)
}

// classifyDecode interprets the decode test. AV1 sources tolerate the
// indicators in av1FalsePositives; any other indicator fails them.
func classifyDecode(isAV1 bool, exitCode int, stderr string) *ValidationError {
	lower := strings.ToLower(stderr)

	if isAV1 {
		foundFalsePositive := false
		for _, indicator := range corruptionIndicators {
			il := strings.ToLower(indicator)
			if !strings.Contains(lower, il) {
				continue
			}
			if !av1FalsePositives[il] {
				return validationErr(KindCorrupt, "Video file appears to be corrupt: %s", indicator)
			}
			foundFalsePositive = true
		}

		if foundFalsePositive {
			logging.Debug("AV1 file had known false positive warnings during validation (ignoring): %s", excerpt(stderr))
			return nil
		}

		if exitCode != 0 {
			if stderr != "" {
				return validationErr(KindDecodeFailed, "Decode test failed: %s", excerpt(stderr))
			}
			return validationErr(KindDecodeFailed, "Decode test failed with no error message")
		}
		return nil
	}

	if indicator, ok := firstIndicator(lower); ok {
		return validationErr(KindCorrupt, "Video file appears to be corrupt: %s", indicator)
	}

	if exitCode != 0 {
		msg := excerpt(stderr)
		if msg == "" {
			msg = "Unknown error"
		}
		return validationErr(KindDecodeFailed, "Decode test failed: %s", msg)
	}

	return nil
}

func firstIndicator(lowerStderr string) (string, bool) {
	for _, indicator := range corruptionIndicators {
		if strings.Contains(lowerStderr, strings.ToLower(indicator)) {
			return indicator, true
		}
	}
	return "", false
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) > stderrExcerptLen {
		return string(r[:stderrExcerptLen])
	}
	return s
}
