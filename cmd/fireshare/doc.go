// Package main is the fireshare transcoding daemon.
//
// It keeps the video catalog in step with VIDEO_DIRECTORY and generates
// lower-resolution variants of every video under PROCESSED_DIRECTORY.
//
// # Application Lifecycle
//
//  1. Memory configuration from MEMORY_LIMIT / GOMEMLIMIT
//  2. Configuration loading and directory checks
//  3. Database initialization (DATA_DIRECTORY/db.sqlite)
//  4. Component initialization:
//     - Transcoder, with an NVENC check when TRANSCODE_GPU is set
//     - Indexer, batch runner and the scan-then-transcode pipeline
//     - Metrics collector
//  5. Scheduler: runs the pipeline on SCAN_SCHEDULE and once at startup
//  6. HTTP server: health probes, status, corrupt registry and /metrics
//  7. Graceful shutdown on SIGINT/SIGTERM: running encodes are cancelled,
//     their partial output removed and the progress record cleared
//
// # HTTP Endpoints
//
//   - GET /healthz, /livez, /readyz: probes
//   - GET /version: build information
//   - GET /metrics: Prometheus metrics (METRICS_ENABLED)
//   - GET /api/status: batch progress and library counts
//   - POST /api/scan: run the pipeline now
//   - GET /api/videos/{id}: one catalog entry
//   - GET /api/corrupt, DELETE /api/corrupt, DELETE /api/corrupt/{id}:
//     inspect and clear the corrupt video registry
package main
