package handlers

import (
	"net/http"

	"fireshare/internal/logging"
	"fireshare/internal/status"
)

// LibraryResponse summarizes the catalog.
type LibraryResponse struct {
	TotalVideos     int `json:"total_videos"`
	AvailableVideos int `json:"available_videos"`
	With1080p       int `json:"with_1080p"`
	With720p        int `json:"with_720p"`
	Corrupt         int `json:"corrupt"`
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Transcoding status.Status    `json:"transcoding"`
	Scanning    bool             `json:"scanning"`
	Library     *LibraryResponse `json:"library,omitempty"`
}

// GetStatus returns the batch progress record alongside library counts.
// The progress record is what the UI polls while a batch runs.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	response := StatusResponse{
		Transcoding: h.progress.Read(),
		Scanning:    h.scans.IsScanning(),
	}

	stats, err := h.library.LibraryStats(r.Context())
	if err != nil {
		logging.Warn("Failed to read library stats: %v", err)
	} else {
		response.Library = &LibraryResponse{
			TotalVideos:     stats.TotalVideos,
			AvailableVideos: stats.AvailableVideos,
			With1080p:       stats.With1080p,
			With720p:        stats.With720p,
			Corrupt:         h.corrupt.Count(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}
