// Package metrics provides Prometheus instrumentation for the transcoding
// pipeline. All metrics are prefixed with "fireshare_".
//
// # Metric Categories
//
// Transcoder metrics track individual variant jobs:
//   - TranscoderJobsTotal: jobs by outcome (success, corruption, encoders)
//   - TranscoderEncoderAttempts: attempts by encoder name and result
//   - TranscoderValidationsTotal: source validations by result kind
//   - TranscoderJobDuration: wall-clock time per job
//
// Batch metrics expose the state of the running batch (BatchIsRunning,
// BatchProgress) and completed runs by result.
//
// Library metrics (LibraryVideosTotal, LibraryVariantsTotal,
// CorruptVideosTotal) are refreshed periodically by a Collector fed from a
// StatsProvider.
//
// Database and filesystem metrics mirror the query and NFS retry behavior of
// the storage layer.
//
// Call InitializeMetrics once at startup so every label combination is
// exported from the first scrape.
package metrics
