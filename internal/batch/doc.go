// Package batch runs the transcoding batch: every selected video, every
// enabled resolution, one job at a time.
//
// For each video the resolutions are tried highest first and only when
// the source is taller than the target. Existing variants are reused
// unless regeneration is requested. A corrupt source is recorded in the
// corrupt registry and its remaining resolutions are abandoned; an encoder
// failure is logged and the batch moves on. A successful encode clears a
// stale corrupt mark.
//
// Progress is written to a StatusSink before the first video and as each
// video starts, and cleared when Run returns for any reason.
package batch
