package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"fireshare/internal/logging"
)

const (
	// anyNVENC is the memo key for "any NVENC encoder is available".
	anyNVENC = ""
	// baselineNVENC is the encoder that stands in for "any NVENC".
	baselineNVENC = "h264_nvenc"

	toolCheckTimeout = 5 * time.Second

	ldLibraryPath = "LD_LIBRARY_PATH"
)

// DefaultLibrarySearchPaths are the directories searched for the NVIDIA
// encode library.
var DefaultLibrarySearchPaths = []string{
	"/usr/lib/x86_64-linux-gnu",
	"/usr/lib64",
	"/usr/local/nvidia/lib",
	"/usr/local/nvidia/lib64",
	"/usr/lib",
}

// Diagnostics describes the host's NVENC setup.
type Diagnostics struct {
	NvidiaSMIAvailable   bool     `json:"nvidia_smi_available"`
	LibNvidiaEncodeFound bool     `json:"libnvidia_encode_found"`
	LibraryPaths         []string `json:"library_paths"`
	LDLibraryPath        string   `json:"ld_library_path"`
	FFmpegHasNVENC       bool     `json:"ffmpeg_has_nvenc"`
}

// LibraryPathAdjuster edits the dynamic library search path seen by child
// processes.
type LibraryPathAdjuster interface {
	// Current returns the search path.
	Current() string
	// Prepend adds dir to the front of the search path unless it is already
	// present, and reports whether the path changed.
	Prepend(dir string) (bool, error)
}

// EnvLibraryPath adjusts LD_LIBRARY_PATH in the process environment, which
// ffmpeg subprocesses inherit.
type EnvLibraryPath struct{}

// Current returns LD_LIBRARY_PATH.
func (EnvLibraryPath) Current() string {
	return os.Getenv(ldLibraryPath)
}

// Prepend adds dir to LD_LIBRARY_PATH.
func (e EnvLibraryPath) Prepend(dir string) (bool, error) {
	current := e.Current()
	if current != "" {
		for _, p := range strings.Split(current, ":") {
			if p == dir {
				return false, nil
			}
		}
	}

	updated := dir
	if current != "" {
		updated = dir + ":" + current
	}
	if err := os.Setenv(ldLibraryPath, updated); err != nil {
		return false, err
	}
	return true, nil
}

// NVENCProbe answers whether ffmpeg was built with NVENC encoders. Answers
// are memoized per encoder name until Reset.
type NVENCProbe struct {
	runner      Runner
	searchPaths []string
	glob        func(pattern string) ([]string, error)
	libraryPath LibraryPathAdjuster

	mu   sync.Mutex
	memo map[string]bool
}

// NewNVENCProbe creates a probe. A nil libraryPath uses EnvLibraryPath.
func NewNVENCProbe(runner Runner, libraryPath LibraryPathAdjuster) *NVENCProbe {
	if libraryPath == nil {
		libraryPath = EnvLibraryPath{}
	}
	return &NVENCProbe{
		runner:      runner,
		searchPaths: DefaultLibrarySearchPaths,
		glob:        filepath.Glob,
		libraryPath: libraryPath,
		memo:        make(map[string]bool),
	}
}

// Available reports whether encoder (for example "av1_nvenc") is compiled
// into ffmpeg. An empty encoder asks whether any NVENC encoder is present.
func (p *NVENCProbe) Available(ctx context.Context, encoder string) bool {
	p.mu.Lock()
	if v, ok := p.memo[encoder]; ok {
		p.mu.Unlock()
		return v
	}
	p.mu.Unlock()

	want := encoder
	if want == anyNVENC {
		want = baselineNVENC
	}

	out, ok, transient := p.listEncoders(ctx)
	available := ok && strings.Contains(out, want)

	// A cancelled or timed-out check says nothing about the hardware.
	if transient || ctx.Err() != nil {
		return available
	}

	p.mu.Lock()
	p.memo[encoder] = available
	p.mu.Unlock()
	return available
}

// Reset forgets memoized answers.
func (p *NVENCProbe) Reset() {
	p.mu.Lock()
	p.memo = make(map[string]bool)
	p.mu.Unlock()
}

// listEncoders returns ffmpeg's encoder list. transient reports a failure
// caused by a deadline or cancellation rather than by ffmpeg itself.
func (p *NVENCProbe) listEncoders(ctx context.Context) (out string, ok, transient bool) {
	ctx, cancel := context.WithTimeout(ctx, toolCheckTimeout)
	defer cancel()

	res, err := p.runner.Run(ctx, "ffmpeg", "-hide_banner", "-encoders")
	if err != nil {
		logging.Debug("Could not check for NVENC availability: %v", err)
		transient = errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded)
		return "", false, transient
	}
	if res.ExitCode != 0 {
		return "", false, false
	}
	return res.Stdout, true, false
}

// Diagnose inspects GPU tooling, the NVIDIA encode library and ffmpeg's
// encoder list. It is used for log output only.
func (p *NVENCProbe) Diagnose(ctx context.Context) Diagnostics {
	var diag Diagnostics

	smiCtx, cancel := context.WithTimeout(ctx, toolCheckTimeout)
	res, err := p.runner.Run(smiCtx, "nvidia-smi")
	cancel()
	if err == nil && res.ExitCode == 0 {
		diag.NvidiaSMIAvailable = true
		logging.Debug("nvidia-smi is available - GPU is accessible")
	} else {
		logging.Debug("nvidia-smi not available")
	}

	for _, dir := range p.searchPaths {
		matches, err := p.glob(filepath.Join(dir, "*nvidia-encode*.so*"))
		if err != nil || len(matches) == 0 {
			continue
		}
		diag.LibNvidiaEncodeFound = true
		diag.LibraryPaths = append(diag.LibraryPaths, matches...)
	}

	diag.LDLibraryPath = p.libraryPath.Current()
	logging.Debug("LD_LIBRARY_PATH: %s", diag.LDLibraryPath)

	if out, ok, _ := p.listEncoders(ctx); ok {
		diag.FFmpegHasNVENC = strings.Contains(out, baselineNVENC)
	}

	return diag
}

// GPUReport is the outcome of CheckGPU.
type GPUReport struct {
	Diagnostics Diagnostics
	// PatchedDir is the directory added to the library path, if any.
	PatchedDir string
	// Available is the NVENC answer after any patching.
	Available bool
}

// CheckGPU confirms NVENC availability. When it is missing, it runs
// Diagnose, adds the directory of a found encode library to the library
// path, clears the memo and checks again. The result never disables GPU
// encoding; the encoder chain falls back to CPU on its own.
func (p *NVENCProbe) CheckGPU(ctx context.Context) GPUReport {
	if p.Available(ctx, anyNVENC) {
		return GPUReport{Available: true}
	}

	logging.Warn("GPU transcoding requested but NVENC not available in ffmpeg")

	report := GPUReport{Diagnostics: p.Diagnose(ctx)}
	diag := report.Diagnostics

	if !diag.NvidiaSMIAvailable {
		logging.Warn("Common causes:")
		logging.Warn("  1. NVIDIA drivers are not installed on the host")
		logging.Warn("  2. NVIDIA Container Toolkit is not installed")
		logging.Warn("  3. Docker is not configured with the nvidia runtime")
		logging.Warn("  4. The GPU does not support NVENC")
		logContainerToolkitHint()
		return report
	}

	logging.Warn("GPU is accessible (nvidia-smi works) but the NVENC encoder is not available to ffmpeg")

	if !diag.LibNvidiaEncodeFound || len(diag.LibraryPaths) == 0 {
		logging.Warn("Common causes on Unraid/Docker:")
		logDriverMountHint()
		logging.Warn("  2. Missing libnvidia-encode.so.1 library")
		logging.Warn("     Library not found in standard paths")
		logging.Warn("     Ensure NVIDIA Container Toolkit is installed on host")
		logContainerToolkitHint()
		return report
	}

	libraryDir := filepath.Dir(diag.LibraryPaths[0])
	changed, err := p.libraryPath.Prepend(libraryDir)
	if err != nil {
		logging.Warn("Failed to update LD_LIBRARY_PATH: %v", err)
	}

	if !changed {
		logging.Warn("Library found at: %s", diag.LibraryPaths[0])
		logging.Warn("But %s is already in LD_LIBRARY_PATH", libraryDir)
		logFFmpegBuildHint()
		return report
	}

	report.PatchedDir = libraryDir
	logging.Info("Automatically added %s to LD_LIBRARY_PATH", libraryDir)

	p.Reset()
	report.Available = p.Available(ctx, anyNVENC)
	if report.Available {
		logging.Info("NVENC is now available, continuing with GPU transcoding")
		return report
	}

	logging.Warn("NVENC still not available after adding library path")
	logFFmpegBuildHint()
	return report
}

func logDriverMountHint() {
	logging.Warn("  1. NVIDIA driver libraries not mounted in container")
	logging.Warn("     Solution: add --gpus all or runtime: nvidia")
}

func logFFmpegBuildHint() {
	logging.Warn("Common causes on Unraid/Docker:")
	logDriverMountHint()
	logging.Warn("  2. FFmpeg not compiled with NVENC support")
	logContainerToolkitHint()
}

func logContainerToolkitHint() {
	logging.Warn("See: https://docs.nvidia.com/datacenter/cloud-native/container-toolkit/install-guide.html")
	logging.Info("Will attempt GPU transcoding anyway and fall back to CPU if needed")
}
