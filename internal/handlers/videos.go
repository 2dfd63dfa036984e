package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"fireshare/internal/database"
	"fireshare/internal/logging"
)

// GetVideo returns one catalog entry including its variant flags.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

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

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, video)
}
