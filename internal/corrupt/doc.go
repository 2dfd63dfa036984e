// Package corrupt tracks videos whose source files could not be decoded.
//
// Registered videos are skipped by batch runs until they are cleared by hand
// or a later transcode of the same video succeeds.
package corrupt
