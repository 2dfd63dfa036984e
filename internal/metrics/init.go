package metrics

// Outcome labels recorded on TranscoderJobsTotal.
const (
	OutcomeSuccess    = "success"
	OutcomeCorruption = "corruption"
	OutcomeEncoders   = "encoders"
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, outcome := range []string{OutcomeSuccess, OutcomeCorruption, OutcomeEncoders} {
		TranscoderJobsTotal.WithLabelValues(outcome)
	}

	for _, result := range []string{"valid", "tool_missing", "not_found", "metadata", "corrupt", "decode_failed", "timeout", "internal"} {
		TranscoderValidationsTotal.WithLabelValues(result)
	}

	for _, enc := range []string{"H.264 CPU", "AV1 CPU", "H.264 NVENC", "AV1 NVENC"} {
		for _, result := range []string{"success", "failed", "timeout"} {
			TranscoderEncoderAttempts.WithLabelValues(enc, result)
		}
	}

	for _, res := range []string{"1080p", "720p"} {
		LibraryVariantsTotal.WithLabelValues(res)
	}

	for _, result := range []string{"completed", "cancelled", "error"} {
		BatchRunsTotal.WithLabelValues(result)
	}

	BatchProgress.WithLabelValues("current")
	BatchProgress.WithLabelValues("total")

	for _, result := range []string{"created", "failed"} {
		PostersTotal.WithLabelValues(result)
	}

	for _, quality := range []string{"original", "1080p", "720p", "480p"} {
		StreamBytesTotal.WithLabelValues(quality)
		for _, result := range []string{"completed", "client_gone", "timeout", "error"} {
			StreamsTotal.WithLabelValues(quality, result)
		}
	}

	for _, op := range []string{"stat", "read", "write"} {
		FilesystemRetryAttempts.WithLabelValues(op)
		FilesystemRetryFailures.WithLabelValues(op)
		FilesystemStaleErrors.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "upsert_video", "mark_missing", "list_videos", "get_video", "mark_variant", "library_stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
