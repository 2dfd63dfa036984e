package transcoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fireshare/internal/filesystem"
	"fireshare/internal/logging"
	"fireshare/internal/metrics"
)

// FailureReason explains why TranscodeVariant did not produce output.
type FailureReason int

const (
	// FailureNone means the variant was written.
	FailureNone FailureReason = iota
	// FailureCorruption means the source failed validation.
	FailureCorruption
	// FailureEncoders means every candidate encoder failed.
	FailureEncoders
)

// String returns the outcome label used in logs and metrics.
func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return metrics.OutcomeSuccess
	case FailureCorruption:
		return metrics.OutcomeCorruption
	case FailureEncoders:
		return metrics.OutcomeEncoders
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

// Options control a single variant encode.
type Options struct {
	UseGPU bool
	// Timeout bounds each encoder attempt. Zero estimates it from the
	// source duration.
	Timeout    time.Duration
	Preference Preference
}

// Config wires a Transcoder to its collaborators. Zero values select the
// production defaults.
type Config struct {
	Runner            Runner
	LookPath          func(string) (string, error)
	LibraryPath       LibraryPathAdjuster
	BaseTimeout       time.Duration
	ValidationTimeout time.Duration
}

// Transcoder encodes resolution variants with a fallback chain of encoders.
// It owns the encoder cache and the NVENC memo, so separate instances do not
// share state.
type Transcoder struct {
	runner            Runner
	prober            *Prober
	validator         *Validator
	nvenc             *NVENCProbe
	cache             *EncoderCache
	baseTimeout       time.Duration
	validationTimeout time.Duration
}

// New creates a Transcoder.
func New(cfg Config) *Transcoder {
	runner := cfg.Runner
	if runner == nil {
		runner = NewExecRunner()
	}
	base := cfg.BaseTimeout
	if base <= 0 {
		base = DefaultBaseTimeout
	}
	validation := cfg.ValidationTimeout
	if validation <= 0 {
		validation = DefaultValidationTimeout
	}

	return &Transcoder{
		runner:            runner,
		prober:            NewProber(runner),
		validator:         NewValidator(runner, cfg.LookPath),
		nvenc:             NewNVENCProbe(runner, cfg.LibraryPath),
		cache:             NewEncoderCache(),
		baseTimeout:       base,
		validationTimeout: validation,
	}
}

// Prober returns the metadata prober sharing this Transcoder's runner.
func (t *Transcoder) Prober() *Prober { return t.prober }

// Runner returns the subprocess runner, so other ffmpeg work shares its
// process tracking and Cleanup.
func (t *Transcoder) Runner() Runner { return t.runner }

// Validator returns the source validator.
func (t *Transcoder) Validator() *Validator { return t.validator }

// NVENC returns the NVENC availability probe.
func (t *Transcoder) NVENC() *NVENCProbe { return t.nvenc }

// CachedEncoder returns the cached encoder for the given mode.
func (t *Transcoder) CachedEncoder(useGPU bool) (EncoderSpec, bool) {
	return t.cache.Get(modeFor(useGPU))
}

// ClearEncoderCache forgets the working encoder for both modes.
func (t *Transcoder) ClearEncoderCache() {
	t.cache.Reset()
}

// Cleanup kills subprocesses started by the runner, if it tracks them.
func (t *Transcoder) Cleanup() {
	if c, ok := t.runner.(interface{ Cleanup() }); ok {
		c.Cleanup()
	}
}

// TranscodeVariant encodes src into out scaled to height. The source is
// validated first; a corrupt source is never handed to an encoder. The
// cached encoder for the mode is tried before the full candidate list,
// and the first encoder that succeeds is cached. Partial output is removed
// after every failed attempt.
func (t *Transcoder) TranscodeVariant(ctx context.Context, src, out string, height int, opts Options) (bool, FailureReason) {
	start := time.Now()
	ok, reason := t.transcodeVariant(ctx, src, out, height, opts)

	metrics.TranscoderJobsTotal.WithLabelValues(reason.String()).Inc()
	metrics.TranscoderJobDuration.Observe(time.Since(start).Seconds())
	return ok, reason
}

func (t *Transcoder) transcodeVariant(ctx context.Context, src, out string, height int, opts Options) (bool, FailureReason) {
	if err := t.validator.Validate(ctx, src, t.validationTimeout); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) && verr.Kind == KindToolMissing {
			logging.Error("Cannot transcode %s: %s", src, verr.Reason)
			return false, FailureEncoders
		}
		if ctx.Err() != nil {
			logging.Warn("Validation of %s interrupted: %v", src, ctx.Err())
			return false, FailureEncoders
		}
		logging.Error("Source video validation failed: %v", err)
		logging.Warn("Skipping transcoding for this video")
		return false, FailureCorruption
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.EstimateTimeout(ctx, src, t.baseTimeout)
	}

	mode := modeFor(opts.UseGPU)

	if cached, ok := t.cache.Get(mode); ok {
		logging.Info("Transcoding video to %dp using cached %s", height, cached.Name)
		if t.encode(ctx, cached, src, out, height, timeout) {
			return true, FailureNone
		}
		logging.Warn("Cached encoder %s failed, trying the other encoders", cached.Name)
		t.cache.Clear(mode)
	}

	if opts.UseGPU {
		t.nvenc.CheckGPU(ctx)
	}

	candidates := Candidates(opts.UseGPU, opts.Preference)
	logging.Debug("Encoder candidates for %dp: %s", height, encoderNames(candidates))

	for i, enc := range candidates {
		if ctx.Err() != nil {
			logging.Warn("Transcode of %s cancelled", src)
			return false, FailureEncoders
		}

		logging.Info("Transcoding video to %dp using %s", height, enc.Name)
		if t.encode(ctx, enc, src, out, height, timeout) {
			t.cache.Set(mode, enc)
			logging.Info("Successfully transcoded using %s", enc.Name)
			return true, FailureNone
		}

		if i < len(candidates)-1 {
			logging.Info("Trying next encoder...")
		}
	}

	logging.Error("All encoders failed for %s at %dp (tried %s)", src, height, encoderNames(candidates))
	return false, FailureEncoders
}

// encode runs one encoder attempt and reports whether out was produced.
func (t *Transcoder) encode(ctx context.Context, enc EncoderSpec, src, out string, height int, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	metrics.TranscoderJobsInProgress.Inc()
	defer metrics.TranscoderJobsInProgress.Dec()

	start := time.Now()
	res, err := t.runner.Run(ctx, "ffmpeg", enc.Args(src, out, height)...)

	result := "success"
	switch {
	case errors.Is(err, ErrTimeout):
		result = "timeout"
		logging.Warn("%s timed out after %s", enc.Name, timeout)
	case err != nil:
		result = "failed"
		logging.Warn("%s failed: %v", enc.Name, err)
	case res.ExitCode != 0:
		result = "failed"
		logging.Warn("%s failed with exit code %d: %s", enc.Name, res.ExitCode, excerpt(res.Stderr))
	}
	metrics.TranscoderEncoderAttempts.WithLabelValues(enc.Name, result).Inc()

	if result != "success" {
		removePartial(out)
		return false
	}

	logging.Debug("%s finished in %s", enc.Name, time.Since(start).Round(time.Millisecond))
	return true
}

func removePartial(out string) {
	if err := filesystem.RemoveIfExists(out); err != nil {
		logging.Warn("Failed to remove partial output %s: %v", out, err)
	}
}
