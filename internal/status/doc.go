// Package status persists batch progress as a small JSON record in the data
// directory and guards scan/transcode runs with a lock file.
//
// The record is written at the start of a batch and after every video, and
// removed when the batch ends. Its absence means no batch is running.
package status
