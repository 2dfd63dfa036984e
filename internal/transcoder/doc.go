// Package transcoder produces lower-resolution variants of source videos by
// driving ffmpeg and ffprobe as subprocesses.
//
// A Transcoder validates each source with a metadata probe and a short
// decode test, then tries an ordered list of encoders (NVENC and software,
// H.264 and AV1) until one succeeds. The encoder that worked is cached per
// mode and tried first on the next job. Every subprocess runs under a
// context deadline derived from the source duration.
//
// Commands are executed through the Runner interface; ExecRunner is the
// os/exec implementation and tests substitute a scripted fake.
package transcoder
