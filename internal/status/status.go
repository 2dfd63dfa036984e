package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fireshare/internal/filesystem"
	"fireshare/internal/logging"
)

const (
	// FileName is the progress record inside the data directory.
	FileName = "transcoding_status.json"
	// LockFileName is the run lock inside the data directory.
	LockFileName = "fireshare.lock"
)

// ErrLocked is returned by AcquireLock when another run holds the lock.
var ErrLocked = errors.New("a scan or transcode run is already in progress")

// Status is the progress of the running batch. A missing record means no
// batch is running.
type Status struct {
	IsRunning    bool    `json:"is_running"`
	Current      int     `json:"current"`
	Total        int     `json:"total"`
	CurrentVideo *string `json:"current_video"`
	PID          *int    `json:"pid"`
}

// Label returns the current video label, or "" when none is set.
func (s Status) Label() string {
	if s.CurrentVideo == nil {
		return ""
	}
	return *s.CurrentVideo
}

// Store reads and writes the progress record and run lock for one data
// directory.
type Store struct {
	dataDir string
	retry   filesystem.RetryConfig
}

// NewStore creates a Store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		retry:   filesystem.DefaultRetryConfig(),
	}
}

// Path returns the location of the progress record.
func (s *Store) Path() string {
	return filepath.Join(s.dataDir, FileName)
}

// Write records progress. A pid of 0 keeps the pid already on file. Write
// failures are logged, not returned.
func (s *Store) Write(current, total int, currentVideo string, pid int) {
	st := Status{
		IsRunning: true,
		Current:   current,
		Total:     total,
	}
	if currentVideo != "" {
		st.CurrentVideo = &currentVideo
	}

	if pid != 0 {
		st.PID = &pid
	} else {
		st.PID = s.Read().PID
	}

	data, err := json.Marshal(st)
	if err != nil {
		logging.Warn("Failed to encode transcoding status: %v", err)
		return
	}
	if err := filesystem.WriteFileAtomic(s.Path(), data, 0o644, s.retry); err != nil {
		logging.Warn("Failed to write transcoding status: %v", err)
	}
}

// Read returns the recorded progress. A missing or malformed record yields
// the idle default.
func (s *Store) Read() Status {
	data, err := filesystem.ReadFileWithRetry(s.Path(), s.retry)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to read transcoding status: %v", err)
		}
		return Status{}
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		logging.Warn("Failed to read transcoding status: %v", err)
		return Status{}
	}
	return st
}

// Clear removes the progress record.
func (s *Store) Clear() {
	if err := filesystem.RemoveIfExists(s.Path()); err != nil {
		logging.Warn("Failed to remove transcoding status file: %v", err)
	}
}

// LockPath returns the location of the run lock.
func (s *Store) LockPath() string {
	return filepath.Join(s.dataDir, LockFileName)
}

// LockExists reports whether the run lock is held.
func (s *Store) LockExists() bool {
	return filesystem.Exists(s.LockPath())
}

// AcquireLock creates the run lock. It returns ErrLocked when the lock is
// already present.
func (s *Store) AcquireLock() error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.OpenFile(s.LockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrLocked
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		logging.Debug("Failed to write pid to lock file: %v", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}

	logging.Debug("A lockfile has been created at %s", s.LockPath())
	return nil
}

// ReleaseLock removes the run lock.
func (s *Store) ReleaseLock() {
	if err := filesystem.RemoveIfExists(s.LockPath()); err != nil {
		logging.Warn("Failed to remove lock file: %v", err)
		return
	}
	logging.Debug("A lockfile has been removed at %s", s.LockPath())
}
