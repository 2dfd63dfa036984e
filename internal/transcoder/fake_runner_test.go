package transcoder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type call struct {
	name string
	args []string
}

// scriptedRunner answers ffprobe/ffmpeg invocations from canned values.
type scriptedRunner struct {
	mu    sync.Mutex
	calls []call

	codec        string
	probeExit    int
	probeStderr  string
	probeStdout  string
	decodeExit   int
	decodeStderr string
	duration     string
	encoders     string
	encodersErr  error
	smiAvailable bool

	// failCodecs lists video codecs whose encode exits non-zero after
	// writing partial output.
	failCodecs map[string]bool
	// timeoutCodecs lists video codecs whose encode times out.
	timeoutCodecs map[string]bool
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{
		codec:         "h264",
		duration:      "120.0",
		failCodecs:    map[string]bool{},
		timeoutCodecs: map[string]bool{},
	}
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, call{name: name, args: append([]string(nil), args...)})
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	switch name {
	case "nvidia-smi":
		if r.smiAvailable {
			return Result{Stdout: "GPU 0"}, nil
		}
		return Result{ExitCode: 127}, nil
	case "ffprobe":
		if hasArg(args, "format=duration") {
			return Result{Stdout: `{"format":{"duration":"` + r.duration + `"}}`}, nil
		}
		if r.probeExit != 0 {
			return Result{ExitCode: r.probeExit, Stderr: r.probeStderr}, nil
		}
		if r.probeStdout != "" {
			return Result{Stdout: r.probeStdout}, nil
		}
		return Result{Stdout: `{"streams":[{"codec_name":"` + r.codec + `","codec_type":"video","width":1920,"height":1080}]}`}, nil
	case "ffmpeg":
		if hasArg(args, "-encoders") {
			if r.encodersErr != nil {
				return Result{}, r.encodersErr
			}
			return Result{Stdout: r.encoders}, nil
		}
		if hasArg(args, "null") {
			return Result{ExitCode: r.decodeExit, Stderr: r.decodeStderr}, nil
		}
		return r.encode(args)
	}
	return Result{ExitCode: 127}, nil
}

func (r *scriptedRunner) encode(args []string) (Result, error) {
	codec := argValue(args, "-c:v")
	out := args[len(args)-1]

	if r.timeoutCodecs[codec] {
		_ = os.WriteFile(out, []byte("partial"), 0o644)
		return Result{}, ErrTimeout
	}
	if r.failCodecs[codec] {
		_ = os.WriteFile(out, []byte("partial"), 0o644)
		return Result{ExitCode: 1, Stderr: "Unknown encoder '" + codec + "'"}, nil
	}
	if err := os.WriteFile(out, []byte("encoded"), 0o644); err != nil {
		return Result{}, err
	}
	return Result{}, nil
}

// encodeCodecs returns the video codec of every encode attempt, in order.
func (r *scriptedRunner) encodeCodecs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var codecs []string
	for _, c := range r.calls {
		if c.name == "ffmpeg" && hasArg(c.args, "-c:v") {
			codecs = append(codecs, argValue(c.args, "-c:v"))
		}
	}
	return codecs
}

func (r *scriptedRunner) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func (r *scriptedRunner) reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func foundTools(string) (string, error) { return "/usr/bin/tool", nil }

// writeSource creates a placeholder source file.
func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	return path
}

func joinCodecs(codecs []string) string {
	return strings.Join(codecs, ",")
}
