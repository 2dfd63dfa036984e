package poster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"fireshare/internal/database"
	"fireshare/internal/filesystem"
	"fireshare/internal/logging"
	"fireshare/internal/metrics"
	"fireshare/internal/transcoder"
)

// FileName is the poster inside a video's derived directory.
const FileName = "poster.jpg"

const (
	defaultMaxWidth  = 1920
	defaultMaxHeight = 1080
	jpegQuality      = 85
	extractTimeout   = time.Minute
)

// VideoLister lists cataloged videos.
type VideoLister interface {
	ListVideos(ctx context.Context, videoID string) ([]*database.MediaAsset, error)
}

// Config wires a Generator.
type Config struct {
	Store        VideoLister
	Runner       transcoder.Runner
	VideoDir     string
	ProcessedDir string

	// Skip is the poster position as a fraction of the duration.
	Skip float64

	// MaxWidth and MaxHeight bound the poster; zero uses 1920x1080.
	MaxWidth  int
	MaxHeight int
}

// Summary counts what a Run did.
type Summary struct {
	Created  int
	Existing int
	Missing  int
	Failed   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d created, %d existing, %d missing sources, %d failed",
		s.Created, s.Existing, s.Missing, s.Failed)
}

// Generator creates posters for cataloged videos.
type Generator struct {
	store        VideoLister
	runner       transcoder.Runner
	videoDir     string
	processedDir string
	skip         float64
	maxWidth     int
	maxHeight    int
	retry        filesystem.RetryConfig
}

// New creates a Generator.
func New(cfg Config) *Generator {
	g := &Generator{
		store:        cfg.Store,
		runner:       cfg.Runner,
		videoDir:     cfg.VideoDir,
		processedDir: cfg.ProcessedDir,
		skip:         cfg.Skip,
		maxWidth:     cfg.MaxWidth,
		maxHeight:    cfg.MaxHeight,
		retry:        filesystem.DefaultRetryConfig(),
	}
	if g.maxWidth <= 0 {
		g.maxWidth = defaultMaxWidth
	}
	if g.maxHeight <= 0 {
		g.maxHeight = defaultMaxHeight
	}
	return g
}

// Path returns where the poster of videoID is written.
func Path(processedDir, videoID string) string {
	return filepath.Join(processedDir, "derived", videoID, FileName)
}

// Run creates missing posters for every cataloged video, or all of them
// when regenerate is set. Per-video failures are counted, not returned.
func (g *Generator) Run(ctx context.Context, regenerate bool) (Summary, error) {
	var summary Summary

	videos, err := g.store.ListVideos(ctx, "")
	if err != nil {
		return summary, fmt.Errorf("failed to list videos: %w", err)
	}
	logging.Info("Checking for videos with missing posters...")

	for _, v := range videos {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		src := filepath.Join(g.videoDir, v.Path)
		if !filesystem.Exists(src) {
			logging.Warn("Skipping creation of poster for video %s because the video at %s does not exist or is not accessible", v.VideoID, src)
			summary.Missing++
			continue
		}

		out := Path(g.processedDir, v.VideoID)
		if !regenerate && filesystem.Exists(out) {
			logging.Debug("Skipping creation of poster for video %s because it exists at %s", v.VideoID, out)
			summary.Existing++
			continue
		}

		if err := g.Create(ctx, src, out, v.Duration*g.skip); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			logging.Warn("Failed to create poster for video %s: %v", v.VideoID, err)
			metrics.PostersTotal.WithLabelValues("failed").Inc()
			summary.Failed++
			continue
		}
		metrics.PostersTotal.WithLabelValues("created").Inc()
		summary.Created++
	}

	logging.Info("Posters: %s", summary)
	return summary, nil
}

// Create writes a poster for src to out using the frame at second. When
// that frame cannot be read (second past the end of a short or damaged
// file) the first frame is used instead.
func (g *Generator) Create(ctx context.Context, src, out string, second float64) error {
	start := time.Now()

	at := int(second)
	img, err := g.extractFrame(ctx, src, at)
	if err != nil && at > 0 && ctx.Err() == nil {
		logging.Debug("Frame at %ds unavailable for %s, using the first frame: %v", at, src, err)
		img, err = g.extractFrame(ctx, src, 0)
	}
	if err != nil {
		return err
	}

	img = imaging.Fit(img, g.maxWidth, g.maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("failed to encode poster: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(out), err)
	}
	if err := filesystem.WriteFileAtomic(out, buf.Bytes(), 0o644, g.retry); err != nil {
		return fmt.Errorf("failed to write poster: %w", err)
	}

	elapsed := time.Since(start)
	metrics.PosterDuration.Observe(elapsed.Seconds())
	logging.Info("Generated poster %s in %v", out, elapsed.Round(time.Millisecond))
	return nil
}

func (g *Generator) extractFrame(ctx context.Context, src string, second int) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, extractTimeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-ss", strconv.Itoa(second),
		"-i", src,
		"-vframes", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	}
	logging.Debug("$ ffmpeg %s", strings.Join(args, " "))

	res, err := g.runner.Run(ctx, "ffmpeg", args...)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("ffmpeg exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	if res.Stdout == "" {
		return nil, errors.New("ffmpeg produced no frame")
	}

	img, err := imaging.Decode(strings.NewReader(res.Stdout))
	if err != nil {
		return nil, fmt.Errorf("failed to decode extracted frame: %w", err)
	}
	return img, nil
}
