package handlers

import (
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"fireshare/internal/batch"
	"fireshare/internal/database"
	"fireshare/internal/logging"
	"fireshare/internal/metrics"
	"fireshare/internal/streaming"
)

const qualityOriginal = "original"

// StreamVideo serves the source file or one of its derived variants,
// selected with ?quality=original|1080p|720p|480p. Range requests are
// served with http.ServeContent so players can seek; full-body requests
// are streamed with write deadlines.
func (h *Handlers) StreamVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	quality, height, ok := parseQuality(r.URL.Query().Get("quality"))
	if !ok {
		writeJSONError(w, "invalid quality", http.StatusBadRequest)
		return
	}

	video, err := h.library.GetVideo(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to load video %s: %v", id, err)
		writeJSONError(w, "failed to load video", http.StatusInternalServerError)
		return
	}

	path := filepath.Join(h.videoDir, video.Path)
	if height > 0 {
		path = batch.VariantPath(h.processedDir, video.VideoID, height)
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		writeJSONError(w, quality+" is not available for this video", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("Failed to open %s: %v", path, err)
		writeJSONError(w, "failed to open video", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		logging.Error("Failed to stat %s: %v", path, err)
		writeJSONError(w, "failed to open video", http.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "video/mp4"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if r.Header.Get("Range") != "" || r.Method == http.MethodHead {
		http.ServeContent(w, r, "", info.ModTime(), f)
		return
	}

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.WriteHeader(http.StatusOK)

	n, err := streaming.Stream(r.Context(), w, f, streaming.DefaultConfig())
	metrics.StreamBytesTotal.WithLabelValues(quality).Add(float64(n))
	metrics.StreamsTotal.WithLabelValues(quality, streamResult(err)).Inc()

	if err != nil && !errors.Is(err, streaming.ErrClientGone) {
		logging.Warn("Stream of %s (%s) ended early after %d bytes: %v", id, quality, n, err)
	}
}

// parseQuality maps a quality parameter to its label and variant height.
// The original file has height 0.
func parseQuality(q string) (string, int, bool) {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" || q == qualityOriginal {
		return qualityOriginal, 0, true
	}

	height, err := strconv.Atoi(strings.TrimSuffix(q, "p"))
	if err != nil || !strings.HasSuffix(q, "p") {
		return "", 0, false
	}
	for _, h := range batch.DefaultResolutions {
		if h == height {
			return q, height, true
		}
	}
	return "", 0, false
}

func streamResult(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, streaming.ErrClientGone):
		return "client_gone"
	case errors.Is(err, streaming.ErrWriteTimeout):
		return "timeout"
	default:
		return "error"
	}
}
