package database

import "time"

// MediaAsset is a cataloged source video. VideoID is derived from the file
// contents, so it survives renames.
type MediaAsset struct {
	VideoID   string    `json:"video_id"`
	Path      string    `json:"path"`
	Extension string    `json:"extension"`
	Title     string    `json:"title"`
	Duration  float64   `json:"duration"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Has720p   bool      `json:"has_720p"`
	Has1080p  bool      `json:"has_1080p"`
	Available bool      `json:"available"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasInfo reports whether stream metadata has been probed.
func (m *MediaAsset) HasInfo() bool {
	return m.Width > 0 && m.Height > 0
}

// LibraryStats summarizes the catalog.
type LibraryStats struct {
	TotalVideos     int
	AvailableVideos int
	With1080p       int
	With720p        int
}
