// Package handlers provides the fireshare daemon's HTTP handlers.
//
// It includes handlers for:
//   - Health, liveness and readiness probes
//   - Build version
//   - Transcode progress and library statistics
//   - Corrupt video registry inspection and clearing
//   - Triggering a scan outside the schedule
//   - Video lookup and streaming of originals or derived variants
package handlers
