package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fireshare/internal/batch"
	"fireshare/internal/indexer"
	"fireshare/internal/logging"
	"fireshare/internal/poster"
	"fireshare/internal/startup"
	"fireshare/internal/status"
)

// Scanner refreshes the video catalog.
type Scanner interface {
	Scan(ctx context.Context) (indexer.Result, error)
}

// Posters creates missing poster images for cataloged videos.
type Posters interface {
	Run(ctx context.Context, regenerate bool) (poster.Summary, error)
}

// Transcoder runs a batch of variant encodes.
type Transcoder interface {
	Run(ctx context.Context, opts batch.Options) (batch.Summary, error)
}

// Locker guards against concurrent runs sharing a data directory.
type Locker interface {
	AcquireLock() error
	ReleaseLock()
}

// SettingsLoader returns the current UI transcoding settings.
type SettingsLoader func() (startup.TranscodeSettings, error)

// Config wires a Pipeline.
type Config struct {
	Scanner    Scanner
	Posters    Posters // nil skips poster generation
	Transcoder Transcoder
	Lock       Locker
	Settings   SettingsLoader
	// TranscodingEnabled gates the batch step entirely.
	TranscodingEnabled bool
	UseGPU             bool
}

// Report describes one pipeline run.
type Report struct {
	Scan       indexer.Result
	Posters    poster.Summary
	Transcoded bool
	Summary    batch.Summary
	Timing     map[string]time.Duration
}

// Pipeline scans the library, creates missing posters and then, when
// enabled, transcodes variants.
type Pipeline struct {
	cfg Config
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run performs one scan, poster and transcode cycle under the run lock. When the
// lock is held by another run, Run returns status.ErrLocked without doing
// anything.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{Timing: make(map[string]time.Duration)}

	if err := p.cfg.Lock.AcquireLock(); err != nil {
		if errors.Is(err, status.ErrLocked) {
			logging.Info("A scan process is currently active, skipping this run")
		}
		return report, err
	}
	defer p.cfg.Lock.ReleaseLock()

	start := time.Now()
	result, err := p.cfg.Scanner.Scan(ctx)
	report.Timing["scan"] = time.Since(start)
	report.Scan = result
	if err != nil {
		return report, fmt.Errorf("scan failed: %w", err)
	}

	if p.cfg.Posters != nil {
		start = time.Now()
		summary, err := p.cfg.Posters.Run(ctx, false)
		report.Timing["posters"] = time.Since(start)
		report.Posters = summary
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			logging.Warn("Poster generation failed, continuing: %v", err)
		}
	}

	if !p.cfg.TranscodingEnabled {
		logging.Debug("Transcoding disabled, skipping batch")
		return report, nil
	}

	settings, err := p.cfg.Settings()
	if err != nil {
		logging.Warn("Failed to load transcode settings, using defaults: %v", err)
		settings = startup.DefaultTranscodeSettings()
	}
	if !settings.AutoTranscode {
		logging.Info("Skipping automatic transcoding (auto_transcode is disabled in settings)")
		return report, nil
	}
	if len(settings.Resolutions()) == 0 {
		logging.Info("Skipping automatic transcoding (no resolutions enabled)")
		return report, nil
	}

	start = time.Now()
	summary, err := p.cfg.Transcoder.Run(ctx, BatchOptions(settings, p.cfg.UseGPU))
	report.Timing["transcode"] = time.Since(start)
	report.Transcoded = true
	report.Summary = summary
	if err != nil {
		return report, fmt.Errorf("transcode failed: %w", err)
	}

	logging.Info("Finished scan in %v, transcode in %v",
		report.Timing["scan"].Round(time.Millisecond), report.Timing["transcode"].Round(time.Millisecond))
	return report, nil
}

// BatchOptions converts UI settings to batch options. The per-attempt
// timeout is left to the duration estimate.
func BatchOptions(settings startup.TranscodeSettings, useGPU bool) batch.Options {
	return batch.Options{
		Resolutions: settings.Resolutions(),
		UseGPU:      useGPU,
		Preference:  settings.EncoderPreference,
	}
}
