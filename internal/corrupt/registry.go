package corrupt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fireshare/internal/filesystem"
	"fireshare/internal/logging"
)

// FileName is the registry file inside the data directory.
const FileName = "corrupt_videos.json"

// Registry is the durable set of video ids whose source failed validation.
// It is stored as a JSON array and rewritten atomically on every change.
type Registry struct {
	path  string
	retry filesystem.RetryConfig
	mu    sync.Mutex
}

// NewRegistry creates a Registry stored in dataDir.
func NewRegistry(dataDir string) *Registry {
	return &Registry{
		path:  filepath.Join(dataDir, FileName),
		retry: filesystem.DefaultRetryConfig(),
	}
}

// Path returns the registry file location.
func (r *Registry) Path() string {
	return r.path
}

// load reads the registry. A missing file is empty; a malformed file is
// empty and logged.
func (r *Registry) load() []string {
	data, err := filesystem.ReadFileWithRetry(r.path, r.retry)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to read corrupt videos list: %v", err)
		}
		return []string{}
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		logging.Warn("Corrupt videos list at %s is malformed, treating as empty: %v", r.path, err)
		return []string{}
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func (r *Registry) save(ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode corrupt videos list: %w", err)
	}
	if err := filesystem.WriteFileAtomic(r.path, data, 0o644, r.retry); err != nil {
		return fmt.Errorf("failed to save corrupt videos list: %w", err)
	}
	return nil
}

// IsCorrupt reports whether videoID is registered.
func (r *Registry) IsCorrupt(videoID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return indexOf(r.load(), videoID) >= 0
}

// Mark adds videoID to the registry.
func (r *Registry) Mark(videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.load()
	if indexOf(ids, videoID) >= 0 {
		return nil
	}
	if err := r.save(append(ids, videoID)); err != nil {
		return err
	}
	logging.Info("Marked video %s as corrupt", videoID)
	return nil
}

// Clear removes videoID and reports whether it was registered.
func (r *Registry) Clear(videoID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := r.load()
	i := indexOf(ids, videoID)
	if i < 0 {
		return false, nil
	}
	ids = append(ids[:i], ids[i+1:]...)
	if err := r.save(ids); err != nil {
		return false, err
	}
	logging.Info("Cleared corrupt status for video %s", videoID)
	return true, nil
}

// List returns all registered ids in insertion order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// ClearAll empties the registry and returns how many ids it held.
func (r *Registry) ClearAll() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.load())
	if err := r.save([]string{}); err != nil {
		return 0, err
	}
	logging.Info("Cleared corrupt status for %d video(s)", count)
	return count, nil
}

// Count returns the number of registered ids.
func (r *Registry) Count() int {
	return len(r.List())
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
