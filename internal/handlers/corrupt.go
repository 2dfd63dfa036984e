package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"fireshare/internal/logging"
)

// ListCorrupt returns the registered corrupt video ids.
func (h *Handlers) ListCorrupt(w http.ResponseWriter, _ *http.Request) {
	ids := h.corrupt.List()
	if ids == nil {
		ids = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"count":  len(ids),
		"videos": ids,
	})
}

// ClearCorrupt removes one video from the registry so the next batch
// retries it.
func (h *Handlers) ClearCorrupt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	removed, err := h.corrupt.Clear(id)
	if err != nil {
		logging.Error("Failed to clear corrupt status for %s: %v", id, err)
		writeJSONError(w, "failed to update corrupt registry", http.StatusInternalServerError)
		return
	}
	if !removed {
		writeJSONError(w, "video is not marked corrupt", http.StatusNotFound)
		return
	}

	logging.Info("Cleared corrupt status for video %s", id)
	writeJSONStatus(w, http.StatusOK, "cleared")
}

// ClearAllCorrupt empties the registry.
func (h *Handlers) ClearAllCorrupt(w http.ResponseWriter, _ *http.Request) {
	n, err := h.corrupt.ClearAll()
	if err != nil {
		logging.Error("Failed to clear corrupt registry: %v", err)
		writeJSONError(w, "failed to update corrupt registry", http.StatusInternalServerError)
		return
	}

	logging.Info("Cleared corrupt status for %d videos", n)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int{"cleared": n})
}
