package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fireshare/internal/logging"
)

// probeTimeout bounds metadata probes that have no caller-supplied timeout.
const probeTimeout = 60 * time.Second

// StreamInfo is the subset of ffprobe stream fields the pipeline uses.
type StreamInfo struct {
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeOutput struct {
	Streams []StreamInfo `json:"streams"`
	Format  probeFormat  `json:"format"`
}

// VideoInfo contains information about a video file.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
}

// Prober extracts metadata with ffprobe.
type Prober struct {
	runner Runner
}

// NewProber creates a Prober backed by runner.
func NewProber(runner Runner) *Prober {
	return &Prober{runner: runner}
}

// ProbeDuration returns the container duration in seconds. The second
// return value is false when the duration could not be determined.
func (p *Prober) ProbeDuration(ctx context.Context, path string) (float64, bool) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := []string{"-v", "quiet", "-print_format", "json", "-show_entries", "format=duration", path}
	logging.Debug("$ ffprobe %s", strings.Join(args, " "))

	res, err := p.runner.Run(ctx, "ffprobe", args...)
	if err != nil {
		logging.Debug("Could not extract video duration: %v", err)
		return 0, false
	}
	if res.ExitCode != 0 {
		logging.Debug("Could not extract video duration: ffprobe exited with %d", res.ExitCode)
		return 0, false
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		logging.Debug("Could not parse video duration: %v", err)
		return 0, false
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil || duration <= 0 {
		return 0, false
	}
	return duration, true
}

// GetVideoInfo retrieves codec, dimensions and duration of the first video
// stream.
func (p *Prober) GetVideoInfo(ctx context.Context, path string) (*VideoInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	res, err := p.runner.Run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe error: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("ffprobe exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	info.Duration, _ = strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)

	for _, s := range out.Streams {
		if s.CodecType == "video" {
			info.Codec = s.CodecName
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	if info.Codec == "" {
		return nil, fmt.Errorf("no video stream found in %s", path)
	}

	return info, nil
}
