// Package main provides fireshare-transcode, the command line companion to
// the fireshare daemon.
//
// It reads the same environment as the daemon (see package startup) and
// operates on the same data directory, so it can be run inside the
// container:
//
//	fireshare-transcode transcode [--regenerate] [--video ID] [--include-corrupt]
//	fireshare-transcode scan
//	fireshare-transcode posters [--regenerate]
//	fireshare-transcode validate <file>
//	fireshare-transcode timeout <file>
//	fireshare-transcode diagnose
//	fireshare-transcode status
//	fireshare-transcode corrupt list|clear <id>|clear-all
//
// scan creates missing posters between the catalog refresh and the batch.
// transcode and scan take the run lock shared with the daemon; a second
// concurrent run exits with an error. When stdout is a terminal, transcode
// shows a live progress line.
//
// Exit codes: 0 success, 1 failure (including an invalid file for
// validate, or NVENC unavailable for diagnose), 2 usage error.
package main
