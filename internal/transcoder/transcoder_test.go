package transcoder

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func newTestTranscoder(r Runner) *Transcoder {
	return New(Config{
		Runner:            r,
		LookPath:          foundTools,
		LibraryPath:       &fakeLibraryPath{},
		ValidationTimeout: time.Second,
	})
}

func outPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "out-720p.mp4")
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be absent, stat err=%v", path, err)
	}
}

func TestTranscodeVariantSuccessCachesEncoder(t *testing.T) {
	r := newScriptedRunner()
	tr := newTestTranscoder(r)
	src, out := writeSource(t), outPath(t)

	ok, reason := tr.TranscodeVariant(context.Background(), src, out, 720, Options{Timeout: time.Minute})
	if !ok || reason != FailureNone {
		t.Fatalf("TranscodeVariant = (%v, %v), want (true, none)", ok, reason)
	}
	if got := joinCodecs(r.encodeCodecs()); got != "libx264" {
		t.Errorf("encode attempts = %s, want libx264", got)
	}

	cached, found := tr.CachedEncoder(false)
	if !found || cached.Name != H264CPU.Name {
		t.Errorf("expected H.264 CPU cached, got %v (found=%v)", cached.Name, found)
	}
	if _, found := tr.CachedEncoder(true); found {
		t.Error("gpu mode should not be cached")
	}
}

func TestTranscodeVariantFallsBackInOrder(t *testing.T) {
	r := newScriptedRunner()
	r.failCodecs["libx264"] = true
	tr := newTestTranscoder(r)
	src, out := writeSource(t), outPath(t)

	ok, _ := tr.TranscodeVariant(context.Background(), src, out, 720, Options{Timeout: time.Minute})
	if !ok {
		t.Fatal("expected AV1 CPU fallback to succeed")
	}
	if got := joinCodecs(r.encodeCodecs()); got != "libx264,libaom-av1" {
		t.Errorf("encode attempts = %s", got)
	}
	if cached, _ := tr.CachedEncoder(false); cached.Name != AV1CPU.Name {
		t.Errorf("cached = %q, want AV1 CPU", cached.Name)
	}
}

func TestTranscodeVariantCachedEncoderFirst(t *testing.T) {
	r := newScriptedRunner()
	r.failCodecs["libx264"] = true
	tr := newTestTranscoder(r)

	if ok, _ := tr.TranscodeVariant(context.Background(), writeSource(t), outPath(t), 720, Options{Timeout: time.Minute}); !ok {
		t.Fatal("first job failed")
	}

	r.reset()
	if ok, _ := tr.TranscodeVariant(context.Background(), writeSource(t), outPath(t), 480, Options{Timeout: time.Minute}); !ok {
		t.Fatal("second job failed")
	}
	if got := joinCodecs(r.encodeCodecs()); got != "libaom-av1" {
		t.Errorf("second job should use only the cached encoder, got %s", got)
	}
}

func TestTranscodeVariantCachedEncoderFailureClearsCache(t *testing.T) {
	r := newScriptedRunner()
	tr := newTestTranscoder(r)
	tr.cache.Set(ModeCPU, AV1CPU)
	r.failCodecs["libaom-av1"] = true
	out := outPath(t)

	ok, reason := tr.TranscodeVariant(context.Background(), writeSource(t), out, 720, Options{Timeout: time.Minute})
	if !ok || reason != FailureNone {
		t.Fatalf("TranscodeVariant = (%v, %v)", ok, reason)
	}

	// The failed cached spec is attempted first, then the full list in
	// catalog order.
	if got := joinCodecs(r.encodeCodecs()); got != "libaom-av1,libx264" {
		t.Errorf("encode attempts = %s", got)
	}
	if cached, _ := tr.CachedEncoder(false); cached.Name != H264CPU.Name {
		t.Errorf("cache should hold the new winner, got %q", cached.Name)
	}
	if data, err := os.ReadFile(out); err != nil || string(data) != "encoded" {
		t.Errorf("expected final output, got %q err=%v", data, err)
	}
}

func TestTranscodeVariantAllEncodersFail(t *testing.T) {
	r := newScriptedRunner()
	for _, codec := range []string{"h264_nvenc", "av1_nvenc", "libx264", "libaom-av1"} {
		r.failCodecs[codec] = true
	}
	r.timeoutCodecs["libaom-av1"] = true
	tr := newTestTranscoder(r)
	tr.nvenc.glob = staticGlob(nil)
	out := outPath(t)

	ok, reason := tr.TranscodeVariant(context.Background(), writeSource(t), out, 1080, Options{UseGPU: true, Timeout: time.Minute})
	if ok || reason != FailureEncoders {
		t.Fatalf("TranscodeVariant = (%v, %v), want (false, encoders)", ok, reason)
	}
	if got := joinCodecs(r.encodeCodecs()); got != "h264_nvenc,av1_nvenc,libx264,libaom-av1" {
		t.Errorf("encode attempts = %s", got)
	}
	assertNoFile(t, out)
	if _, found := tr.CachedEncoder(true); found {
		t.Error("nothing should be cached after total failure")
	}
}

func TestTranscodeVariantCorruptSourceSkipsEncoders(t *testing.T) {
	r := newScriptedRunner()
	r.decodeStderr = "moov atom not found"
	tr := newTestTranscoder(r)
	out := outPath(t)

	ok, reason := tr.TranscodeVariant(context.Background(), writeSource(t), out, 720, Options{Timeout: time.Minute})
	if ok || reason != FailureCorruption {
		t.Fatalf("TranscodeVariant = (%v, %v), want (false, corruption)", ok, reason)
	}
	if n := len(r.encodeCodecs()); n != 0 {
		t.Errorf("expected no encode attempts, got %d", n)
	}
	assertNoFile(t, out)
}

func TestTranscodeVariantToolMissingIsNotCorruption(t *testing.T) {
	r := newScriptedRunner()
	tr := New(Config{
		Runner:   r,
		LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	})

	ok, reason := tr.TranscodeVariant(context.Background(), writeSource(t), outPath(t), 720, Options{Timeout: time.Minute})
	if ok || reason != FailureEncoders {
		t.Fatalf("TranscodeVariant = (%v, %v), want (false, encoders)", ok, reason)
	}
}

func TestTranscodeVariantEstimatesTimeout(t *testing.T) {
	r := newScriptedRunner()
	tr := newTestTranscoder(r)

	if ok, _ := tr.TranscodeVariant(context.Background(), writeSource(t), outPath(t), 720, Options{}); !ok {
		t.Fatal("expected success")
	}

	probed := false
	for _, c := range r.calls {
		if c.name == "ffprobe" && hasArg(c.args, "format=duration") {
			probed = true
		}
	}
	if !probed {
		t.Error("expected duration probe when no timeout is given")
	}
}

func TestTranscodeVariantCancelled(t *testing.T) {
	r := newScriptedRunner()
	tr := newTestTranscoder(r)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, reason := tr.TranscodeVariant(ctx, writeSource(t), outPath(t), 720, Options{Timeout: time.Minute})
	if ok || reason != FailureEncoders {
		t.Fatalf("TranscodeVariant = (%v, %v), want (false, encoders)", ok, reason)
	}
	if n := len(r.encodeCodecs()); n != 0 {
		t.Errorf("expected no encode attempts after cancellation, got %d", n)
	}
}

func TestClearEncoderCache(t *testing.T) {
	tr := newTestTranscoder(newScriptedRunner())
	tr.cache.Set(ModeCPU, H264CPU)
	tr.cache.Set(ModeGPU, H264NVENC)

	tr.ClearEncoderCache()

	if _, ok := tr.CachedEncoder(false); ok {
		t.Error("cpu entry survived")
	}
	if _, ok := tr.CachedEncoder(true); ok {
		t.Error("gpu entry survived")
	}
}

func TestSeparateInstancesDoNotShareCache(t *testing.T) {
	a := newTestTranscoder(newScriptedRunner())
	b := newTestTranscoder(newScriptedRunner())
	a.cache.Set(ModeCPU, AV1CPU)

	if _, ok := b.CachedEncoder(false); ok {
		t.Error("cache leaked between instances")
	}
}

func TestFailureReasonString(t *testing.T) {
	tests := map[FailureReason]string{
		FailureNone:       "success",
		FailureCorruption: "corruption",
		FailureEncoders:   "encoders",
	}
	for reason, want := range tests {
		if got := reason.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(reason), got, want)
		}
	}
}
