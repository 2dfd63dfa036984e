// Package logging provides the leveled logger used across the transcoding
// pipeline.
//
// Levels, from most to least verbose:
//   - DEBUG: subprocess command lines, cache hits, skipped variants
//   - INFO: batch progress, encoder selection, timings
//   - WARN: encoder failures, corrupt sources, state file problems
//   - ERROR: exhausted encoder chains, store failures
//
// The level is read once from DEBUG (any truthy value forces debug) or
// LOG_LEVEL, and may be overridden with SetLevel.
package logging
