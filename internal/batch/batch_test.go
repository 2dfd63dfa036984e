package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"fireshare/internal/database"
	"fireshare/internal/transcoder"
)

type fakeStore struct {
	videos   []*database.MediaAsset
	variants map[string][]int
	listErr  error
}

func (s *fakeStore) ListVideos(ctx context.Context, videoID string) ([]*database.MediaAsset, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*database.MediaAsset
	for _, v := range s.videos {
		if videoID == "" || v.VideoID == videoID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkVariant(ctx context.Context, videoID string, height int) error {
	if s.variants == nil {
		s.variants = make(map[string][]int)
	}
	s.variants[videoID] = append(s.variants[videoID], height)
	return nil
}

type job struct {
	src    string
	height int
}

// fakeTranscoder writes the output file on success and returns scripted
// failures keyed by "<videoID>-<height>".
type fakeTranscoder struct {
	mu       sync.Mutex
	jobs     []job
	failures map[string]transcoder.FailureReason
	onJob    func()
}

func (f *fakeTranscoder) TranscodeVariant(ctx context.Context, src, out string, height int, opts transcoder.Options) (bool, transcoder.FailureReason) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job{src: src, height: height})
	f.mu.Unlock()
	if f.onJob != nil {
		f.onJob()
	}

	key := fmt.Sprintf("%s-%d", filepath.Base(filepath.Dir(out)), height)
	if reason, ok := f.failures[key]; ok {
		return false, reason
	}
	if err := os.WriteFile(out, []byte("variant"), 0o644); err != nil {
		return false, transcoder.FailureEncoders
	}
	return true, transcoder.FailureNone
}

func (f *fakeTranscoder) heights() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hs []int
	for _, j := range f.jobs {
		hs = append(hs, j.height)
	}
	return hs
}

type statusEvent struct {
	current, total int
	video          string
	pid            int
}

type fakeStatus struct {
	events  []statusEvent
	cleared int
}

func (s *fakeStatus) Write(current, total int, currentVideo string, pid int) {
	s.events = append(s.events, statusEvent{current, total, currentVideo, pid})
}

func (s *fakeStatus) Clear() { s.cleared++ }

type fakeCorrupt struct {
	ids map[string]bool
}

func newFakeCorrupt(ids ...string) *fakeCorrupt {
	c := &fakeCorrupt{ids: make(map[string]bool)}
	for _, id := range ids {
		c.ids[id] = true
	}
	return c
}

func (c *fakeCorrupt) List() []string {
	var out []string
	for id := range c.ids {
		out = append(out, id)
	}
	return out
}

func (c *fakeCorrupt) Mark(id string) error {
	c.ids[id] = true
	return nil
}

func (c *fakeCorrupt) Clear(id string) (bool, error) {
	had := c.ids[id]
	delete(c.ids, id)
	return had, nil
}

type harness struct {
	store   *fakeStore
	tr      *fakeTranscoder
	status  *fakeStatus
	corrupt *fakeCorrupt
	runner  *Runner
	procDir string
}

func newHarness(t *testing.T, videos ...*database.MediaAsset) *harness {
	t.Helper()
	videoDir := t.TempDir()
	for _, v := range videos {
		if err := os.WriteFile(filepath.Join(videoDir, v.Path), []byte(v.VideoID), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := &harness{
		store:   &fakeStore{videos: videos},
		tr:      &fakeTranscoder{failures: map[string]transcoder.FailureReason{}},
		status:  &fakeStatus{},
		corrupt: newFakeCorrupt(),
		procDir: t.TempDir(),
	}
	h.runner = New(Config{
		Store:        h.store,
		Transcoder:   h.tr,
		Status:       h.status,
		Corrupt:      h.corrupt,
		VideoDir:     videoDir,
		ProcessedDir: h.procDir,
	})
	return h
}

func video(id string, height int) *database.MediaAsset {
	return &database.MediaAsset{VideoID: id, Path: id + ".mp4", Extension: ".mp4", Title: "title " + id, Height: height, Available: true}
}

func TestRunNeverUpscales(t *testing.T) {
	h := newHarness(t, video("hd", 1080), video("small", 480), video("qhd", 1440))

	sum, err := h.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}

	// hd: 720, 480. small: nothing. qhd: 1080, 720, 480.
	if got := h.tr.heights(); !reflect.DeepEqual(got, []int{720, 480, 1080, 720, 480}) {
		t.Errorf("attempted heights = %v", got)
	}
	if sum.Transcoded != 5 || sum.SkippedBelowResolution != 4 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if !reflect.DeepEqual(h.store.variants["qhd"], []int{1080, 720, 480}) {
		t.Errorf("variants = %v", h.store.variants["qhd"])
	}
}

func TestRunResolutionsHighToLow(t *testing.T) {
	h := newHarness(t, video("v", 2160))

	if _, err := h.runner.Run(context.Background(), Options{Resolutions: []int{480, 1080, 720, 720}}); err != nil {
		t.Fatal(err)
	}
	if got := h.tr.heights(); !reflect.DeepEqual(got, []int{1080, 720, 480}) {
		t.Errorf("attempted heights = %v", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, video("v", 1080))

	if _, err := h.runner.Run(context.Background(), Options{}); err != nil {
		t.Fatal(err)
	}
	first := len(h.tr.jobs)
	h.store.variants = nil

	sum, err := h.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(h.tr.jobs) != first {
		t.Errorf("second run started %d new jobs", len(h.tr.jobs)-first)
	}
	if sum.Reused != 2 {
		t.Errorf("Reused = %d, want 2", sum.Reused)
	}
	if !reflect.DeepEqual(h.store.variants["v"], []int{720, 480}) {
		t.Errorf("reuse should still update flags, got %v", h.store.variants["v"])
	}

	// Regenerate forces new jobs.
	if _, err := h.runner.Run(context.Background(), Options{Regenerate: true}); err != nil {
		t.Fatal(err)
	}
	if len(h.tr.jobs) != first*2 {
		t.Errorf("regenerate should re-encode, jobs=%d", len(h.tr.jobs))
	}
}

func TestRunExcludesCorruptVideos(t *testing.T) {
	h := newHarness(t, video("good", 1080), video("bad", 1080))
	h.corrupt.ids["bad"] = true

	sum, err := h.runner.Run(context.Background(), Options{Resolutions: []int{720}})
	if err != nil {
		t.Fatal(err)
	}
	if sum.Videos != 1 || sum.ExcludedCorrupt != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
	for _, j := range h.tr.jobs {
		if filepath.Base(j.src) == "bad.mp4" {
			t.Error("corrupt video should not be attempted")
		}
	}
	if h.status.events[0].total != 1 {
		t.Errorf("total should exclude corrupt videos, got %d", h.status.events[0].total)
	}
}

func TestRunIncludesCorruptWhenRequested(t *testing.T) {
	for _, opts := range []Options{
		{IncludeCorrupt: true, Resolutions: []int{720}},
		{VideoID: "bad", Resolutions: []int{720}},
	} {
		h := newHarness(t, video("good", 1080), video("bad", 1080))
		h.corrupt.ids["bad"] = true

		if _, err := h.runner.Run(context.Background(), opts); err != nil {
			t.Fatal(err)
		}

		attempted := false
		for _, j := range h.tr.jobs {
			if filepath.Base(j.src) == "bad.mp4" {
				attempted = true
			}
		}
		if !attempted {
			t.Errorf("opts %+v: corrupt video should be attempted", opts)
		}
		// Success heals the registry.
		if h.corrupt.ids["bad"] {
			t.Errorf("opts %+v: successful encode should clear the corrupt mark", opts)
		}
	}
}

func TestRunCorruptionAbandonsLowerResolutions(t *testing.T) {
	h := newHarness(t, video("broken", 1440), video("next", 1080))
	h.tr.failures["broken-1080"] = transcoder.FailureCorruption

	sum, err := h.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}

	// broken: 1080 only. next: 720, 480.
	if got := h.tr.heights(); !reflect.DeepEqual(got, []int{1080, 720, 480}) {
		t.Errorf("attempted heights = %v", got)
	}
	if !h.corrupt.ids["broken"] {
		t.Error("broken should be registered corrupt")
	}
	if sum.Corrupt != 1 || sum.Transcoded != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestRunEncoderFailureContinues(t *testing.T) {
	h := newHarness(t, video("v", 1440))
	h.tr.failures["v-1080"] = transcoder.FailureEncoders

	sum, err := h.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := h.tr.heights(); !reflect.DeepEqual(got, []int{1080, 720, 480}) {
		t.Errorf("attempted heights = %v", got)
	}
	if h.corrupt.ids["v"] {
		t.Error("encoder failure must not mark the video corrupt")
	}
	if sum.EncoderFailures != 1 || sum.Transcoded != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if _, err := os.Stat(VariantPath(h.procDir, "v", 1080)); !os.IsNotExist(err) {
		t.Error("failed variant should not exist")
	}
}

func TestRunSkipsMissingSource(t *testing.T) {
	h := newHarness(t, video("v", 1080))
	h.store.videos = append(h.store.videos, video("ghost", 1080))

	sum, err := h.runner.Run(context.Background(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sum.SkippedMissing != 1 {
		t.Errorf("SkippedMissing = %d", sum.SkippedMissing)
	}
	for _, j := range h.tr.jobs {
		if filepath.Base(j.src) == "ghost.mp4" {
			t.Error("missing source should not be attempted")
		}
	}
}

func TestRunProgressAndClear(t *testing.T) {
	h := newHarness(t, video("a", 1080), video("b", 1080))

	if _, err := h.runner.Run(context.Background(), Options{Resolutions: []int{720}}); err != nil {
		t.Fatal(err)
	}

	want := []statusEvent{
		{0, 2, "", os.Getpid()},
		{1, 2, "title a", 0},
		{2, 2, "title b", 0},
	}
	if !reflect.DeepEqual(h.status.events, want) {
		t.Errorf("status events = %+v, want %+v", h.status.events, want)
	}
	if h.status.cleared != 1 {
		t.Errorf("status cleared %d times", h.status.cleared)
	}
}

func TestRunCancellationClearsStatus(t *testing.T) {
	h := newHarness(t, video("a", 1440), video("b", 1440))
	ctx, cancel := context.WithCancel(context.Background())
	h.tr.onJob = cancel

	_, err := h.runner.Run(ctx, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(h.tr.jobs) != 1 {
		t.Errorf("expected the batch to stop after the in-flight job, got %d jobs", len(h.tr.jobs))
	}
	if h.status.cleared != 1 {
		t.Error("status must be cleared on cancellation")
	}
}

func TestRunListErrorClearsStatus(t *testing.T) {
	h := newHarness(t)
	h.store.listErr = errors.New("database is locked")

	if _, err := h.runner.Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error")
	}
	if h.status.cleared != 1 {
		t.Error("status must be cleared on error")
	}
}

func TestSortResolutions(t *testing.T) {
	got := SortResolutions([]int{480, 0, 1080, 720, 1080, -5})
	if !reflect.DeepEqual(got, []int{1080, 720, 480}) {
		t.Errorf("SortResolutions() = %v", got)
	}
}

func TestVariantPath(t *testing.T) {
	got := VariantPath("/processed", "abc", 720)
	want := filepath.Join("/processed", "derived", "abc", "abc-720p.mp4")
	if got != want {
		t.Errorf("VariantPath() = %q, want %q", got, want)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeSkippedExists.String() != "skipped-exists" {
		t.Errorf("unexpected %q", OutcomeSkippedExists.String())
	}
}
