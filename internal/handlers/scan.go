package handlers

import (
	"net/http"

	"fireshare/internal/logging"
)

// TriggerScan starts a scan-and-transcode run outside the schedule. A run
// already in progress makes this a no-op.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if h.triggerScan == nil {
		writeJSONError(w, "scheduled scans are disabled", http.StatusConflict)
		return
	}

	if err := h.triggerScan(); err != nil {
		logging.Error("Failed to trigger scan: %v", err)
		writeJSONError(w, "failed to trigger scan", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusAccepted, "scan_triggered")
}
