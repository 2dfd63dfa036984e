package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close database: %v", err)
		}
	})
	return db
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"successful query", nil},
		{"failed query", errors.New("test error")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Should not panic for either status label.
			recordQuery("test_operation", time.Now(), tt.err)
		})
	}
}

func TestNewCreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"videos", "video_info", "metadata"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "db.sqlite"))
	if err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}

func TestUpsertAndGetVideo(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	asset := &MediaAsset{
		VideoID:   "abc123",
		Path:      "clips/match.mp4",
		Extension: ".mp4",
		Title:     "match",
		Duration:  93.5,
		Width:     2560,
		Height:    1440,
	}
	if err := db.UpsertVideo(ctx, asset); err != nil {
		t.Fatalf("UpsertVideo: %v", err)
	}

	got, err := db.GetVideo(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if got.Path != asset.Path || got.Title != "match" || got.Height != 1440 || got.Duration != 93.5 {
		t.Errorf("unexpected asset: %+v", got)
	}
	if !got.Available || got.Has720p || got.Has1080p {
		t.Errorf("unexpected flags: %+v", got)
	}
	if !got.HasInfo() {
		t.Error("HasInfo should be true")
	}
}

func TestUpsertKeepsTitleAndMetadata(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := &MediaAsset{VideoID: "v1", Path: "a.mp4", Extension: ".mp4", Title: "a", Width: 1920, Height: 1080, Duration: 10}
	if err := db.UpsertVideo(ctx, first); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkVariant(ctx, "v1", 720); err != nil {
		t.Fatal(err)
	}

	// A rename without probe results.
	moved := &MediaAsset{VideoID: "v1", Path: "moved/a.mp4", Extension: ".mp4", Title: "renamed"}
	if err := db.UpsertVideo(ctx, moved); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetVideo(ctx, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Path != "moved/a.mp4" {
		t.Errorf("Path = %q", got.Path)
	}
	if got.Title != "a" {
		t.Errorf("Title should be kept, got %q", got.Title)
	}
	if got.Height != 1080 || got.Duration != 10 {
		t.Errorf("metadata should be kept, got %+v", got)
	}
	if !got.Has720p {
		t.Error("variant flag should survive upsert")
	}
}

func TestGetVideoNotFound(t *testing.T) {
	db := setupTestDB(t)

	if _, err := db.GetVideo(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListVideos(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, a := range []*MediaAsset{
		{VideoID: "b", Path: "b.mp4", Extension: ".mp4"},
		{VideoID: "a", Path: "a.mov", Extension: ".mov"},
		{VideoID: "c", Path: "c.webm", Extension: ".webm"},
	} {
		if err := db.UpsertVideo(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	all, err := db.ListVideos(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Path != "a.mov" || all[2].Path != "c.webm" {
		t.Errorf("unexpected listing: %d items", len(all))
	}

	one, err := db.ListVideos(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0].VideoID != "b" {
		t.Errorf("unexpected filtered listing: %v", one)
	}

	none, err := db.ListVideos(ctx, "zzz")
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty listing, got %v, %v", none, err)
	}
}

func TestMarkMissing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertVideo(ctx, &MediaAsset{VideoID: "gone", Path: "gone.mp4", Extension: ".mp4"}); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkMissing(ctx, "gone"); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetVideo(ctx, "gone")
	if err != nil {
		t.Fatal(err)
	}
	if got.Available {
		t.Error("video should be unavailable")
	}

	// Seeing the file again restores it.
	if err := db.UpsertVideo(ctx, &MediaAsset{VideoID: "gone", Path: "gone.mp4", Extension: ".mp4"}); err != nil {
		t.Fatal(err)
	}
	if got, _ := db.GetVideo(ctx, "gone"); !got.Available {
		t.Error("video should be available again")
	}
}

func TestMarkVariant(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.UpsertVideo(ctx, &MediaAsset{VideoID: "v", Path: "v.mp4", Extension: ".mp4"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		height   int
		want720  bool
		want1080 bool
	}{
		{480, false, false},
		{1080, false, true},
		{720, true, true},
	}
	for _, tt := range tests {
		if err := db.MarkVariant(ctx, "v", tt.height); err != nil {
			t.Fatalf("MarkVariant(%d): %v", tt.height, err)
		}
		got, _ := db.GetVideo(ctx, "v")
		if got.Has720p != tt.want720 || got.Has1080p != tt.want1080 {
			t.Errorf("after %dp: has_720p=%v has_1080p=%v", tt.height, got.Has720p, got.Has1080p)
		}
	}

	if err := db.MarkVariant(ctx, "unknown", 720); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown video, got %v", err)
	}
}

func TestLibraryStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := db.UpsertVideo(ctx, &MediaAsset{VideoID: id, Path: id + ".mp4", Extension: ".mp4"}); err != nil {
			t.Fatal(err)
		}
	}
	_ = db.MarkVariant(ctx, "a", 1080)
	_ = db.MarkVariant(ctx, "a", 720)
	_ = db.MarkVariant(ctx, "b", 720)
	_ = db.MarkMissing(ctx, "c")

	stats, err := db.LibraryStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := LibraryStats{TotalVideos: 3, AvailableVideos: 2, With1080p: 1, With720p: 2}
	if stats != want {
		t.Errorf("LibraryStats() = %+v, want %+v", stats, want)
	}
}

func TestLastScan(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetLastScan(ctx)
	if err != nil || !got.IsZero() {
		t.Fatalf("expected zero time, got %v, %v", got, err)
	}

	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	if err := db.SetLastScan(ctx, now); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetLastScan(ctx)
	if err != nil || !got.Equal(now) {
		t.Errorf("GetLastScan() = %v, %v", got, err)
	}
}
