package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fireshare/internal/database"
	"fireshare/internal/filesystem"
	"fireshare/internal/logging"
	"fireshare/internal/metrics"
	"fireshare/internal/transcoder"
)

// DefaultResolutions are the variant heights, highest first.
var DefaultResolutions = []int{1080, 720, 480}

// VideoStore lists videos and records finished variants.
type VideoStore interface {
	ListVideos(ctx context.Context, videoID string) ([]*database.MediaAsset, error)
	MarkVariant(ctx context.Context, videoID string, height int) error
}

// Transcoder encodes one variant.
type Transcoder interface {
	TranscodeVariant(ctx context.Context, src, out string, height int, opts transcoder.Options) (bool, transcoder.FailureReason)
}

// StatusSink receives batch progress.
type StatusSink interface {
	Write(current, total int, currentVideo string, pid int)
	Clear()
}

// CorruptRegistry records videos whose sources cannot be decoded.
type CorruptRegistry interface {
	List() []string
	Mark(videoID string) error
	Clear(videoID string) (bool, error)
}

// Options select what a batch run does.
type Options struct {
	// Regenerate re-encodes variants that already exist.
	Regenerate bool
	// IncludeCorrupt retries videos in the corrupt registry.
	IncludeCorrupt bool
	// VideoID limits the run to one video. Registered corrupt videos are
	// not excluded when set.
	VideoID string
	// Resolutions are the enabled heights. Nil uses DefaultResolutions.
	Resolutions []int
	UseGPU      bool
	Preference  transcoder.Preference
	// Timeout bounds each encoder attempt. Zero estimates it per source.
	Timeout time.Duration
}

// Config wires a Runner to its collaborators.
type Config struct {
	Store      VideoStore
	Transcoder Transcoder
	Status     StatusSink
	Corrupt    CorruptRegistry
	// VideoDir is the root that MediaAsset paths are relative to.
	VideoDir string
	// ProcessedDir holds the derived/ variant tree.
	ProcessedDir string
}

// Runner processes videos one at a time, resolutions high to low.
type Runner struct {
	store        VideoStore
	transcoder   Transcoder
	status       StatusSink
	corrupt      CorruptRegistry
	videoDir     string
	processedDir string
}

// New creates a Runner.
func New(cfg Config) *Runner {
	return &Runner{
		store:        cfg.Store,
		transcoder:   cfg.Transcoder,
		status:       cfg.Status,
		corrupt:      cfg.Corrupt,
		videoDir:     cfg.VideoDir,
		processedDir: cfg.ProcessedDir,
	}
}

// VariantPath returns where the height variant of a video is written.
func VariantPath(processedDir, videoID string, height int) string {
	return filepath.Join(processedDir, "derived", videoID, fmt.Sprintf("%s-%dp.mp4", videoID, height))
}

// SortResolutions returns a copy of heights without duplicates or
// non-positive values, highest first.
func SortResolutions(heights []int) []int {
	seen := make(map[int]bool, len(heights))
	out := make([]int, 0, len(heights))
	for _, h := range heights {
		if h <= 0 || seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

// Run transcodes every selected video to each enabled resolution below its
// own height. Per-video failures never stop the batch. The progress record
// is cleared on every return path; on cancellation Run returns ctx.Err().
func (r *Runner) Run(ctx context.Context, opts Options) (Summary, error) {
	var summary Summary

	metrics.BatchIsRunning.Set(1)
	defer metrics.BatchIsRunning.Set(0)
	defer r.status.Clear()

	start := time.Now()
	err := r.run(ctx, opts, &summary)
	summary.Duration = time.Since(start)

	switch {
	case err == nil:
		metrics.BatchRunsTotal.WithLabelValues("completed").Inc()
		logging.Info("Transcoding complete: %s", summary)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		metrics.BatchRunsTotal.WithLabelValues("cancelled").Inc()
		logging.Info("Transcoding cancelled: %s", summary)
	default:
		metrics.BatchRunsTotal.WithLabelValues("error").Inc()
	}
	return summary, err
}

func (r *Runner) run(ctx context.Context, opts Options, summary *Summary) error {
	videos, err := r.store.ListVideos(ctx, opts.VideoID)
	if err != nil {
		return fmt.Errorf("failed to list videos: %w", err)
	}

	if !opts.IncludeCorrupt && opts.VideoID == "" {
		videos = r.excludeCorrupt(videos, summary)
	}

	resolutions := opts.Resolutions
	if resolutions == nil {
		resolutions = DefaultResolutions
	}
	resolutions = SortResolutions(resolutions)

	total := len(videos)
	summary.Videos = total
	logging.Info("Processing %d videos for transcoding (GPU: %v, Encoder: %s)", total, opts.UseGPU, preferenceLabel(opts.Preference))

	r.status.Write(0, total, "", os.Getpid())
	metrics.BatchProgress.WithLabelValues("total").Set(float64(total))
	metrics.BatchProgress.WithLabelValues("current").Set(0)

	for i, v := range videos {
		if err := ctx.Err(); err != nil {
			logging.Info("Transcoding cancelled by user")
			return err
		}

		idx := i + 1
		r.status.Write(idx, total, v.Title, 0)
		metrics.BatchProgress.WithLabelValues("current").Set(float64(idx))

		if err := r.processVideo(ctx, idx, total, v, resolutions, opts, summary); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func (r *Runner) excludeCorrupt(videos []*database.MediaAsset, summary *Summary) []*database.MediaAsset {
	corrupt := make(map[string]bool)
	for _, id := range r.corrupt.List() {
		corrupt[id] = true
	}
	if len(corrupt) == 0 {
		return videos
	}

	kept := make([]*database.MediaAsset, 0, len(videos))
	for _, v := range videos {
		if corrupt[v.VideoID] {
			continue
		}
		kept = append(kept, v)
	}

	if skipped := len(videos) - len(kept); skipped > 0 {
		summary.ExcludedCorrupt = skipped
		logging.Info("Skipping %d video(s) previously marked as corrupt. Use --include-corrupt to retry them.", skipped)
	}
	return kept
}

// processVideo handles every resolution of one video. It only returns an
// error when ctx is done.
func (r *Runner) processVideo(ctx context.Context, idx, total int, v *database.MediaAsset, resolutions []int, opts Options, summary *Summary) error {
	src := filepath.Join(r.videoDir, v.Path)
	if !filesystem.Exists(src) {
		logging.Warn("Skipping transcoding for video %s because the video at %s does not exist", v.VideoID, src)
		summary.add(OutcomeSkippedMissingSource)
		return nil
	}

	derivedDir := filepath.Join(r.processedDir, "derived", v.VideoID)
	if err := os.MkdirAll(derivedDir, 0o755); err != nil {
		logging.Error("Failed to create %s: %v", derivedDir, err)
		return nil
	}

	for _, height := range resolutions {
		if err := ctx.Err(); err != nil {
			return err
		}

		if v.Height <= height {
			summary.add(OutcomeSkippedBelowResolution)
			continue
		}

		out := VariantPath(r.processedDir, v.VideoID, height)

		if !opts.Regenerate && filesystem.Exists(out) {
			logging.Debug("Skipping %dp transcode for %s (already exists)", height, v.VideoID)
			summary.add(OutcomeSkippedExists)
			r.markVariant(ctx, v.VideoID, height)
			continue
		}

		logging.Info("[%d/%d] Transcoding %s to %dp (%s)", idx, total, v.VideoID, height, v.Path)
		ok, reason := r.transcoder.TranscodeVariant(ctx, src, out, height, transcoder.Options{
			UseGPU:     opts.UseGPU,
			Timeout:    opts.Timeout,
			Preference: opts.Preference,
		})

		if ok {
			summary.add(OutcomeSuccess)
			r.markVariant(ctx, v.VideoID, height)
			if _, err := r.corrupt.Clear(v.VideoID); err != nil {
				logging.Warn("Failed to clear corrupt status for %s: %v", v.VideoID, err)
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if reason == transcoder.FailureCorruption {
			logging.Warn("Skipping video %s %dp transcode - source file appears corrupt", v.VideoID, height)
			summary.add(OutcomeCorruption)
			if err := r.corrupt.Mark(v.VideoID); err != nil {
				logging.Warn("Failed to mark %s corrupt: %v", v.VideoID, err)
			}
			return nil
		}

		logging.Warn("Skipping video %s %dp transcode - all encoders failed", v.VideoID, height)
		summary.add(OutcomeEncoderFailure)
	}

	return nil
}

func (r *Runner) markVariant(ctx context.Context, videoID string, height int) {
	if err := r.store.MarkVariant(ctx, videoID, height); err != nil {
		logging.Error("Failed to record %dp variant for %s: %v", height, videoID, err)
	}
}

func preferenceLabel(p transcoder.Preference) string {
	if p == "" {
		return string(transcoder.PreferenceAuto)
	}
	return string(p)
}
