// Package pipeline runs the scan-then-transcode cycle shared by the daemon
// schedule and the command line.
package pipeline
