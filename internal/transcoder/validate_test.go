package transcoder

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestClassifyDecode(t *testing.T) {
	tests := []struct {
		name     string
		isAV1    bool
		exitCode int
		stderr   string
		wantKind ValidationKind
		wantOK   bool
		reason   string
	}{
		{
			name:   "clean decode",
			wantOK: true,
		},
		{
			name:   "AV1 false positive only",
			isAV1:  true,
			stderr: "[av1 @ 0x1] Corrupt frame detected",
			wantOK: true,
		},
		{
			name:     "AV1 false positive ignores exit code",
			isAV1:    true,
			exitCode: 1,
			stderr:   "No sequence header\nDecode error rate 0.5 exceeds maximum",
			wantOK:   true,
		},
		{
			name:     "AV1 true positive",
			isAV1:    true,
			stderr:   "Corrupt frame detected\nmoov atom not found",
			wantKind: KindCorrupt,
			reason:   "Video file appears to be corrupt: moov atom not found",
		},
		{
			name:     "AV1 unknown failure",
			isAV1:    true,
			exitCode: 1,
			stderr:   "something else broke",
			wantKind: KindDecodeFailed,
			reason:   "Decode test failed: something else broke",
		},
		{
			name:     "AV1 failure without output",
			isAV1:    true,
			exitCode: 1,
			wantKind: KindDecodeFailed,
			reason:   "Decode test failed with no error message",
		},
		{
			name:     "indicator with zero exit",
			stderr:   "[mov,mp4 @ 0x1] moov atom not found",
			wantKind: KindCorrupt,
			reason:   "Video file appears to be corrupt: moov atom not found",
		},
		{
			name:     "indicator matched case-insensitively",
			exitCode: 1,
			stderr:   "INVALID NAL UNIT SIZE (1234 > 99)",
			wantKind: KindCorrupt,
			reason:   "Video file appears to be corrupt: Invalid NAL unit size",
		},
		{
			name:     "first indicator in table order wins",
			exitCode: 1,
			stderr:   "non-existing PPS 0 referenced\nCorrupt frame detected",
			wantKind: KindCorrupt,
			reason:   "Video file appears to be corrupt: Corrupt frame detected",
		},
		{
			name:     "non-zero exit without indicator",
			exitCode: 1,
			stderr:   "Conversion failed!",
			wantKind: KindDecodeFailed,
			reason:   "Decode test failed: Conversion failed!",
		},
		{
			name:     "non-zero exit without output",
			exitCode: 1,
			wantKind: KindDecodeFailed,
			reason:   "Decode test failed: Unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyDecode(tt.isAV1, tt.exitCode, tt.stderr)
			if tt.wantOK {
				if got != nil {
					t.Fatalf("expected valid, got %v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected validation failure, got nil")
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.reason)
			}
		})
	}
}

func TestClassifyDecodeTruncatesStderr(t *testing.T) {
	stderr := strings.Repeat("x", 500)
	got := classifyDecode(false, 1, stderr)
	if got == nil {
		t.Fatal("expected failure")
	}
	want := "Decode test failed: " + strings.Repeat("x", stderrExcerptLen)
	if got.Reason != want {
		t.Errorf("reason length = %d, want %d", len(got.Reason), len(want))
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *scriptedRunner)
		wantKind ValidationKind
		wantOK   bool
		reason   string
	}{
		{
			name:   "valid h264",
			setup:  func(r *scriptedRunner) {},
			wantOK: true,
		},
		{
			name: "AV1 source with false positive",
			setup: func(r *scriptedRunner) {
				r.codec = "av1"
				r.decodeStderr = "Corrupt frame detected"
			},
			wantOK: true,
		},
		{
			name: "moov atom missing",
			setup: func(r *scriptedRunner) {
				r.decodeStderr = "moov atom not found"
			},
			wantKind: KindCorrupt,
			reason:   "Video file appears to be corrupt: moov atom not found",
		},
		{
			name: "probe failure",
			setup: func(r *scriptedRunner) {
				r.probeExit = 1
				r.probeStderr = "source.mp4: Invalid data found when processing input\n"
			},
			wantKind: KindMetadata,
			reason:   "ffprobe failed: source.mp4: Invalid data found when processing input",
		},
		{
			name: "probe failure without output",
			setup: func(r *scriptedRunner) {
				r.probeExit = 1
			},
			wantKind: KindMetadata,
			reason:   "ffprobe failed: Unknown error reading video metadata",
		},
		{
			name: "no video streams",
			setup: func(r *scriptedRunner) {
				r.probeStdout = `{"streams":[]}`
			},
			wantKind: KindMetadata,
			reason:   "No video streams found in file",
		},
		{
			name: "unparseable metadata",
			setup: func(r *scriptedRunner) {
				r.probeStdout = `not json`
			},
			wantKind: KindMetadata,
			reason:   "Failed to parse video metadata",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newScriptedRunner()
			tt.setup(r)
			v := NewValidator(r, foundTools)

			err := v.Validate(context.Background(), writeSource(t), time.Second)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", verr.Kind, tt.wantKind)
			}
			if err.Error() != tt.reason {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.reason)
			}
		})
	}
}

func TestValidateToolMissing(t *testing.T) {
	r := newScriptedRunner()
	lookPath := func(name string) (string, error) {
		if name == "ffmpeg" {
			return "", exec.ErrNotFound
		}
		return "/usr/bin/" + name, nil
	}

	err := NewValidator(r, lookPath).Validate(context.Background(), writeSource(t), time.Second)

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Kind != KindToolMissing {
		t.Fatalf("expected tool missing, got %v", err)
	}
	if verr.Reason != "ffmpeg command not found - ensure ffmpeg is installed" {
		t.Errorf("unexpected reason %q", verr.Reason)
	}
	if len(r.calls) != 0 {
		t.Errorf("expected no subprocesses, got %d", len(r.calls))
	}
}

func TestValidateNotFound(t *testing.T) {
	r := newScriptedRunner()
	missing := filepath.Join(t.TempDir(), "missing.mp4")

	err := NewValidator(r, foundTools).Validate(context.Background(), missing, time.Second)

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Kind != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if verr.Reason != "Video file not found" {
		t.Errorf("unexpected reason %q", verr.Reason)
	}
}

type timeoutRunner struct{}

func (timeoutRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return Result{}, ErrTimeout
}

func TestValidateTimeout(t *testing.T) {
	err := NewValidator(timeoutRunner{}, foundTools).Validate(context.Background(), writeSource(t), 30*time.Second)

	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if verr.Reason != "Validation timed out after 30 seconds" {
		t.Errorf("unexpected reason %q", verr.Reason)
	}
}

func TestValidationKindString(t *testing.T) {
	if KindCorrupt.String() != "corrupt" {
		t.Errorf("KindCorrupt.String() = %q", KindCorrupt.String())
	}
	if ValidationKind(42).String() != "internal" {
		t.Errorf("unknown kind should map to internal")
	}
}
