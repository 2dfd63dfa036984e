package handlers

import (
	"context"
	"time"

	"fireshare/internal/database"
	"fireshare/internal/status"
)

// Library reads the video catalog.
type Library interface {
	LibraryStats(ctx context.Context) (database.LibraryStats, error)
	GetVideo(ctx context.Context, videoID string) (*database.MediaAsset, error)
}

// ScanState reports indexer activity.
type ScanState interface {
	IsScanning() bool
	LastScanTime() time.Time
}

// ProgressReader reads the batch progress record.
type ProgressReader interface {
	Read() status.Status
}

// CorruptRegistry is the persisted list of undecodable videos.
type CorruptRegistry interface {
	List() []string
	Count() int
	Clear(videoID string) (bool, error)
	ClearAll() (int, error)
}

// Config wires Handlers to the rest of the daemon.
type Config struct {
	Library  Library
	Scans    ScanState
	Progress ProgressReader
	Corrupt  CorruptRegistry
	// VideoDir holds the source files; ProcessedDir holds derived/.
	VideoDir     string
	ProcessedDir string
	// TriggerScan starts a scan-and-transcode run in the background. Nil
	// disables POST /api/scan.
	TriggerScan func() error
}

// Handlers serves the daemon's HTTP API.
type Handlers struct {
	library      Library
	scans        ScanState
	progress     ProgressReader
	corrupt      CorruptRegistry
	triggerScan  func() error
	videoDir     string
	processedDir string
	startTime    time.Time
}

// New creates Handlers.
func New(cfg Config) *Handlers {
	return &Handlers{
		library:      cfg.Library,
		scans:        cfg.Scans,
		progress:     cfg.Progress,
		corrupt:      cfg.Corrupt,
		triggerScan:  cfg.TriggerScan,
		videoDir:     cfg.VideoDir,
		processedDir: cfg.ProcessedDir,
		startTime:    time.Now(),
	}
}
