package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"@every 5m", false},
		{"*/10 * * * *", false},
		{"@hourly", false},
		{"not a schedule", true},
		{"* * *", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateSchedule(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSchedule(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	s := New(context.Background())

	if err := s.Add("scan", "bogus", func(context.Context) {}); err == nil {
		t.Error("expected error for invalid expression")
	}
	if err := s.Add("scan", "@every 1h", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("scan", "@every 1h", func(context.Context) {}); err == nil {
		t.Error("expected error for duplicate name")
	}
	if err := s.Trigger("unknown"); err == nil {
		t.Error("expected error for unknown job")
	}
}

func TestTriggerSkipsOverlappingRuns(t *testing.T) {
	s := New(context.Background())
	s.Start()
	defer s.Stop(time.Second)

	var runs atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 4)

	err := s.Add("scan", "@every 1h", func(ctx context.Context) {
		runs.Add(1)
		started <- struct{}{}
		<-release
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Trigger("scan"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not start")
	}

	// The first run is still blocked; this one must be skipped.
	if err := s.Trigger("scan"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	time.Sleep(50 * time.Millisecond)

	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
}

func TestStopCancelsJobContext(t *testing.T) {
	s := New(context.Background())
	s.Start()

	cancelled := make(chan struct{})
	started := make(chan struct{})
	if err := s.Add("transcode", "@every 1h", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("transcode"); err != nil {
		t.Fatal(err)
	}
	<-started

	s.Stop(2 * time.Second)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("job context was not cancelled")
	}
}

func TestStopWaitsForTriggeredRun(t *testing.T) {
	s := New(context.Background())
	s.Start()

	var finished atomic.Bool
	started := make(chan struct{})
	if err := s.Add("scan", "@every 1h", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		// Simulates waiting for a killed subprocess before cleanup.
		time.Sleep(200 * time.Millisecond)
		finished.Store(true)
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("scan"); err != nil {
		t.Fatal(err)
	}
	<-started

	s.Stop(5 * time.Second)

	if !finished.Load() {
		t.Error("Stop returned before the triggered run finished")
	}
	if err := s.Trigger("scan"); !errors.Is(err, ErrStopped) {
		t.Errorf("Trigger after Stop error = %v, want ErrStopped", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	s := New(context.Background())

	ran := make(chan struct{})
	if err := s.Add("scan", "@every 1h", func(ctx context.Context) {
		<-ctx.Done()
		close(ran)
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.Trigger("scan"); err != nil {
		t.Fatal(err)
	}

	s.Stop(2 * time.Second)

	select {
	case <-ran:
	default:
		t.Error("Stop returned before the triggered run finished")
	}
}

func TestNextAfterStart(t *testing.T) {
	s := New(context.Background())
	if err := s.Add("scan", "@every 1h", func(context.Context) {}); err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop(time.Second)

	// Start schedules entries asynchronously.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		next, err := s.Next("scan")
		if err != nil {
			t.Fatal(err)
		}
		if !next.IsZero() {
			if d := time.Until(next); d < 59*time.Minute || d > 61*time.Minute {
				t.Errorf("next run in %v, want about 1h", d)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("next run was never scheduled")
}
