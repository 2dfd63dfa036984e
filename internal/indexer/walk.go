package indexer

import (
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"fireshare/internal/logging"
)

// SupportedExtensions are the source container extensions that are indexed.
var SupportedExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
}

var (
	// chunkFilePattern matches partial upload chunks.
	chunkFilePattern = regexp.MustCompile(`\.part\d{4}$`)
	// transcodePattern matches variants that were written next to a source.
	transcodePattern = regexp.MustCompile(`(?i)-(?:720p|1080p)\.mp4$`)
)

type walkResult struct {
	// paths are relative to the video root, sorted.
	paths   []string
	skipped int
}

// collectVideoFiles returns the supported video files below root. Hidden
// entries, upload chunks and transcoded variants are skipped.
func collectVideoFiles(root string) (walkResult, error) {
	var res walkResult

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Warn("Error accessing %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		name := d.Name()
		if path != root && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if !SupportedExtensions[strings.ToLower(filepath.Ext(name))] {
			return nil
		}
		if chunkFilePattern.MatchString(name) {
			return nil
		}
		if transcodePattern.MatchString(name) {
			logging.Debug("Skipping transcoded file: %s", name)
			res.skipped++
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		res.paths = append(res.paths, rel)
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		return res, err
	}

	sort.Strings(res.paths)
	return res, nil
}
