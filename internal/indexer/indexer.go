package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fireshare/internal/database"
	"fireshare/internal/filesystem"
	"fireshare/internal/logging"
	"fireshare/internal/metrics"
	"fireshare/internal/transcoder"
	"fireshare/internal/workers"
)

// maxWorkers caps parallel hashing and probing; NFS mounts do poorly with
// more.
const maxWorkers = 8

// Store is the catalog the indexer writes to.
type Store interface {
	ListVideos(ctx context.Context, videoID string) ([]*database.MediaAsset, error)
	UpsertVideo(ctx context.Context, asset *database.MediaAsset) error
	MarkMissing(ctx context.Context, videoID string) error
	SetLastScan(ctx context.Context, t time.Time) error
}

// Prober reads stream metadata from a video file.
type Prober interface {
	GetVideoInfo(ctx context.Context, path string) (*transcoder.VideoInfo, error)
}

// Result summarizes a scan.
type Result struct {
	Files           int
	Added           int
	Updated         int
	Duplicates      int
	SkippedVariants int
	Missing         int
	ProbeFailures   int
	Duration        time.Duration
}

// Indexer keeps the catalog in sync with the video directory.
type Indexer struct {
	store    Store
	prober   Prober
	videoDir string
	workers  int

	mu         sync.Mutex
	isScanning bool
	lastScan   time.Time
}

// New creates an Indexer for videoDir.
func New(store Store, prober Prober, videoDir string) *Indexer {
	return &Indexer{
		store:    store,
		prober:   prober,
		videoDir: videoDir,
		workers:  workers.ForIO(maxWorkers),
	}
}

// SetWorkers overrides the number of files hashed and probed at once.
func (idx *Indexer) SetWorkers(n int) {
	if n > 0 {
		idx.workers = n
	}
}

// IsScanning reports whether a scan is running.
func (idx *Indexer) IsScanning() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.isScanning
}

// LastScanTime returns when the last scan finished.
func (idx *Indexer) LastScanTime() time.Time {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.lastScan
}

func (idx *Indexer) tryStart() bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.isScanning {
		return false
	}
	idx.isScanning = true
	return true
}

func (idx *Indexer) finish() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.isScanning = false
	idx.lastScan = time.Now()
}

// scannedFile is the per-file output of the parallel stage.
type scannedFile struct {
	relPath string
	videoID string
	info    *transcoder.VideoInfo
}

// Scan walks the video directory, adds new videos, refreshes moved or
// unprobed ones, and marks videos whose files are gone as unavailable.
func (idx *Indexer) Scan(ctx context.Context) (Result, error) {
	if !idx.tryStart() {
		logging.Info("Scan already in progress, skipping...")
		return Result{}, nil
	}
	defer idx.finish()

	metrics.IndexerRunsTotal.Inc()
	start := time.Now()

	res, err := idx.scan(ctx)
	res.Duration = time.Since(start)
	if err != nil {
		metrics.IndexerErrors.Inc()
		return res, err
	}

	metrics.IndexerLastRunDuration.Set(res.Duration.Seconds())
	metrics.IndexerFilesProcessed.Add(float64(res.Files))

	if err := idx.store.SetLastScan(ctx, time.Now()); err != nil {
		logging.Warn("Failed to record scan time: %v", err)
	}

	logging.Info("Scan complete in %v: %d files, %d new, %d updated, %d duplicates, %d missing",
		res.Duration.Round(time.Millisecond), res.Files, res.Added, res.Updated, res.Duplicates, res.Missing)
	return res, nil
}

func (idx *Indexer) scan(ctx context.Context) (Result, error) {
	var res Result

	logging.Info("Scanning %s for video files", idx.videoDir)
	walked, err := collectVideoFiles(idx.videoDir)
	if err != nil {
		return res, fmt.Errorf("walk error: %w", err)
	}
	res.Files = len(walked.paths)
	res.SkippedVariants = walked.skipped
	if walked.skipped > 0 {
		logging.Info("Skipped %d transcoded video file(s)", walked.skipped)
	}

	existing, err := idx.store.ListVideos(ctx, "")
	if err != nil {
		return res, fmt.Errorf("failed to list videos: %w", err)
	}
	known := make(map[string]*database.MediaAsset, len(existing))
	for _, a := range existing {
		known[a.VideoID] = a
	}

	scanned, probeFailures, err := idx.hashAndProbe(ctx, walked.paths, known)
	if err != nil {
		return res, err
	}
	res.ProbeFailures = probeFailures

	seen := make(map[string]bool, len(scanned))
	for _, sf := range scanned {
		if sf.videoID == "" {
			continue
		}
		if seen[sf.videoID] {
			logging.Info("Found duplicate video %s as %s, skipping...", sf.videoID, sf.relPath)
			res.Duplicates++
			continue
		}
		seen[sf.videoID] = true

		prev, isKnown := known[sf.videoID]
		if isKnown && prev.Available && prev.Path == sf.relPath && sf.info == nil {
			continue
		}

		asset := &database.MediaAsset{
			VideoID:   sf.videoID,
			Path:      sf.relPath,
			Extension: filepath.Ext(sf.relPath),
			Title:     strings.TrimSuffix(filepath.Base(sf.relPath), filepath.Ext(sf.relPath)),
		}
		if sf.info != nil {
			asset.Duration = sf.info.Duration
			asset.Width = sf.info.Width
			asset.Height = sf.info.Height
		}

		if err := idx.store.UpsertVideo(ctx, asset); err != nil {
			logging.Error("Failed to save video %s: %v", sf.videoID, err)
			metrics.IndexerErrors.Inc()
			continue
		}

		if isKnown {
			res.Updated++
			logging.Debug("Updated video %s at %s", sf.videoID, sf.relPath)
		} else {
			res.Added++
			logging.Info("Adding new Video %s at %s (%dx%d, %.1fs)", sf.videoID, sf.relPath, asset.Width, asset.Height, asset.Duration)
		}
	}
	res.Missing = idx.markMissing(ctx, existing, seen)
	return res, nil
}

// needsProbe reports whether a video lacks stream metadata.
func needsProbe(a *database.MediaAsset) bool {
	return a == nil || !a.HasInfo()
}

// hashAndProbe computes ids for every file and probes those without stream
// metadata. Files that cannot be read get an empty id.
func (idx *Indexer) hashAndProbe(ctx context.Context, paths []string, known map[string]*database.MediaAsset) ([]scannedFile, int, error) {
	results := make([]scannedFile, len(paths))
	var probeFailures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i, rel := range paths {
		i, rel := i, rel
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			full := filepath.Join(idx.videoDir, rel)
			id, err := VideoID(full)
			if err != nil {
				logging.Warn("Could not hash %s: %v", full, err)
				metrics.IndexerErrors.Inc()
				return nil
			}
			results[i] = scannedFile{relPath: rel, videoID: id}

			if !needsProbe(known[id]) {
				return nil
			}

			info, err := idx.prober.GetVideoInfo(gctx, full)
			if err != nil {
				logging.Warn("[%s] - There may be a corrupt file in your video directory, or it is still being recorded: %v", rel, err)
				probeFailures.Add(1)
				return nil
			}
			results[i].info = info
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return results, int(probeFailures.Load()), nil
}

// markMissing flags available videos that were not seen and whose file no
// longer exists.
func (idx *Indexer) markMissing(ctx context.Context, existing []*database.MediaAsset, seen map[string]bool) int {
	missing := 0
	for _, a := range existing {
		if !a.Available || seen[a.VideoID] {
			continue
		}

		full := filepath.Join(idx.videoDir, a.Path)
		if _, err := filesystem.StatWithRetry(full, filesystem.DefaultRetryConfig()); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			logging.Warn("Could not verify %s: %v", full, err)
			continue
		}

		logging.Warn("Video %s at %s was not found", a.VideoID, full)
		if err := idx.store.MarkMissing(ctx, a.VideoID); err != nil {
			logging.Error("Failed to mark video %s missing: %v", a.VideoID, err)
			continue
		}
		missing++
	}
	return missing
}
