package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"fireshare/internal/batch"
	"fireshare/internal/corrupt"
	"fireshare/internal/database"
	"fireshare/internal/indexer"
	"fireshare/internal/pipeline"
	"fireshare/internal/poster"
	"fireshare/internal/startup"
	"fireshare/internal/status"
	"fireshare/internal/transcoder"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries what every command needs.
type cli struct {
	cfg    *startup.Config
	stdout io.Writer
	stderr io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	command := args[0]
	if command == "help" || command == "-h" || command == "--help" {
		printUsage(stdout)
		return exitOK
	}

	cfg, err := startup.ReadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	c := &cli{cfg: cfg, stdout: stdout, stderr: stderr}

	switch command {
	case "transcode":
		return c.transcode(ctx, args[1:])
	case "scan":
		return c.scan(ctx)
	case "posters":
		return c.posters(ctx, args[1:])
	case "validate":
		return c.validate(ctx, args[1:])
	case "timeout":
		return c.timeout(ctx, args[1:])
	case "diagnose":
		return c.diagnose(ctx)
	case "status":
		return c.status()
	case "corrupt":
		return c.corrupt(args[1:])
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(stderr)
		return exitUsage
	}
}

// sanitizeCommand replaces anything outside [a-zA-Z0-9_-] with '_' before
// echoing user input.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Fireshare transcoding tools")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage: fireshare-transcode <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  transcode [--regenerate] [--video ID] [--include-corrupt]")
	fmt.Fprintln(w, "                       Transcode videos to the enabled resolutions")
	fmt.Fprintln(w, "  scan                 Scan the video directory, then transcode if auto_transcode is on")
	fmt.Fprintln(w, "  posters [--regenerate]")
	fmt.Fprintln(w, "                       Create missing poster images")
	fmt.Fprintln(w, "  validate <file>      Check that a video can be decoded")
	fmt.Fprintln(w, "  timeout <file>       Show the encode timeout estimated for a video")
	fmt.Fprintln(w, "  diagnose             Report NVENC availability")
	fmt.Fprintln(w, "  status               Show the progress of a running batch")
	fmt.Fprintln(w, "  corrupt list|clear <id>|clear-all")
	fmt.Fprintln(w, "                       Inspect or reset the corrupt video registry")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  DATA_DIRECTORY, VIDEO_DIRECTORY, PROCESSED_DIRECTORY, ENABLE_TRANSCODING,")
	fmt.Fprintln(w, "  TRANSCODE_GPU, TRANSCODE_TIMEOUT, VALIDATION_TIMEOUT, THUMBNAIL_VIDEO_LOCATION,")
	fmt.Fprintln(w, "  ENV_FILE")
}

func (c *cli) newTranscoder() *transcoder.Transcoder {
	return transcoder.New(transcoder.Config{
		BaseTimeout:       c.cfg.TranscodeTimeout,
		ValidationTimeout: c.cfg.ValidationTimeout,
	})
}

func (c *cli) openDatabase(ctx context.Context) (*database.Database, error) {
	if err := os.MkdirAll(c.cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := database.New(ctx, c.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database (DATA_DIRECTORY=%s): %w", c.cfg.DataDir, err)
	}
	return db, nil
}

func (c *cli) closeDatabase(db *database.Database) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(c.stderr, "Warning: failed to close database: %v\n", err)
	}
}

func (c *cli) transcode(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("transcode", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	regenerate := fs.Bool("regenerate", false, "overwrite existing transcoded videos")
	video := fs.String("video", "", "transcode a specific video by id")
	includeCorrupt := fs.Bool("include-corrupt", false, "include videos previously marked as corrupt")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if !c.cfg.TranscodingEnabled {
		fmt.Fprintln(c.stdout, "Transcoding is disabled. Set ENABLE_TRANSCODING=true to enable.")
		return exitOK
	}

	settings, err := startup.LoadTranscodeSettings(c.cfg.DataDir)
	if err != nil {
		fmt.Fprintf(c.stderr, "Warning: %v; using default settings\n", err)
		settings = startup.DefaultTranscodeSettings()
	}

	db, err := c.openDatabase(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitError
	}
	defer c.closeDatabase(db)

	store := status.NewStore(c.cfg.DataDir)
	if err := store.AcquireLock(); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v (remove %s to continue anyway)\n", err, store.LockPath())
		return exitError
	}
	defer store.ReleaseLock()

	trans := c.newTranscoder()
	defer trans.Cleanup()

	runner := batch.New(batch.Config{
		Store:        db,
		Transcoder:   trans,
		Status:       c.progressSink(store),
		Corrupt:      corrupt.NewRegistry(c.cfg.DataDir),
		VideoDir:     c.cfg.VideoDir,
		ProcessedDir: c.cfg.ProcessedDir,
	})

	opts := pipeline.BatchOptions(settings, c.cfg.UseGPU)
	opts.Regenerate = *regenerate
	opts.VideoID = *video
	opts.IncludeCorrupt = *includeCorrupt

	summary, err := runner.Run(ctx, opts)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.stdout, "Transcoding cancelled by user")
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitError
	}

	fmt.Fprintf(c.stdout, "Transcoding complete: %s\n", summary)
	return exitOK
}

func (c *cli) scan(ctx context.Context) int {
	db, err := c.openDatabase(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitError
	}
	defer c.closeDatabase(db)

	trans := c.newTranscoder()
	defer trans.Cleanup()

	store := status.NewStore(c.cfg.DataDir)
	registry := corrupt.NewRegistry(c.cfg.DataDir)

	pipe := pipeline.New(pipeline.Config{
		Scanner: indexer.New(db, trans.Prober(), c.cfg.VideoDir),
		Posters: c.newPosterGenerator(db, trans),
		Transcoder: batch.New(batch.Config{
			Store:        db,
			Transcoder:   trans,
			Status:       c.progressSink(store),
			Corrupt:      registry,
			VideoDir:     c.cfg.VideoDir,
			ProcessedDir: c.cfg.ProcessedDir,
		}),
		Lock: store,
		Settings: func() (startup.TranscodeSettings, error) {
			return startup.LoadTranscodeSettings(c.cfg.DataDir)
		},
		TranscodingEnabled: c.cfg.TranscodingEnabled,
		UseGPU:             c.cfg.UseGPU,
	})

	report, err := pipe.Run(ctx)
	if errors.Is(err, status.ErrLocked) {
		fmt.Fprintf(c.stderr, "A scan process is currently active. Remove %s to continue anyway.\n", store.LockPath())
		return exitError
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitError
	}

	r := report.Scan
	fmt.Fprintf(c.stdout, "Scanned %d files: %d added, %d updated, %d duplicates, %d missing\n",
		r.Files, r.Added, r.Updated, r.Duplicates, r.Missing)
	fmt.Fprintf(c.stdout, "Posters: %s\n", report.Posters)
	if report.Transcoded {
		fmt.Fprintf(c.stdout, "Transcoding complete: %s\n", report.Summary)
	}
	return exitOK
}

func (c *cli) newPosterGenerator(db *database.Database, trans *transcoder.Transcoder) *poster.Generator {
	return poster.New(poster.Config{
		Store:        db,
		Runner:       trans.Runner(),
		VideoDir:     c.cfg.VideoDir,
		ProcessedDir: c.cfg.ProcessedDir,
		Skip:         c.cfg.PosterSkip,
	})
}

func (c *cli) posters(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("posters", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	regenerate := fs.Bool("regenerate", false, "Overwrite existing posters")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	db, err := c.openDatabase(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitError
	}
	defer c.closeDatabase(db)

	trans := c.newTranscoder()
	defer trans.Cleanup()

	summary, err := c.newPosterGenerator(db, trans).Run(ctx, *regenerate)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.stdout, "Poster generation cancelled by user")
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitError
	}

	fmt.Fprintf(c.stdout, "Posters: %s\n", summary)
	return exitOK
}

func (c *cli) validate(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "Usage: fireshare-transcode validate <file>")
		return exitUsage
	}

	err := c.newTranscoder().Validator().Validate(ctx, args[0], c.cfg.ValidationTimeout)
	if err != nil {
		var verr *transcoder.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintf(c.stdout, "INVALID (%s): %s\n", verr.Kind, verr.Reason)
		} else {
			fmt.Fprintf(c.stdout, "INVALID: %v\n", err)
		}
		return exitError
	}

	fmt.Fprintln(c.stdout, "OK")
	return exitOK
}

func (c *cli) timeout(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "Usage: fireshare-transcode timeout <file>")
		return exitUsage
	}

	d := c.newTranscoder().EstimateTimeout(ctx, args[0], c.cfg.TranscodeTimeout)
	fmt.Fprintf(c.stdout, "%d seconds (%v)\n", int(d.Seconds()), d)
	return exitOK
}

func (c *cli) diagnose(ctx context.Context) int {
	report := c.newTranscoder().NVENC().CheckGPU(ctx)

	out := struct {
		transcoder.Diagnostics
		PatchedDir string `json:"patched_dir,omitempty"`
		Available  bool   `json:"nvenc_available"`
	}{report.Diagnostics, report.PatchedDir, report.Available}

	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return exitError
	}
	if !report.Available {
		return exitError
	}
	return exitOK
}

func (c *cli) status() int {
	st := status.NewStore(c.cfg.DataDir).Read()
	if !st.IsRunning {
		fmt.Fprintln(c.stdout, "No transcoding in progress")
		return exitOK
	}

	fmt.Fprintf(c.stdout, "Transcoding %d/%d", st.Current, st.Total)
	if label := st.Label(); label != "" {
		fmt.Fprintf(c.stdout, ": %s", label)
	}
	if st.PID != nil {
		fmt.Fprintf(c.stdout, " (pid %d)", *st.PID)
	}
	fmt.Fprintln(c.stdout)
	return exitOK
}

func (c *cli) corrupt(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(c.stderr, "Usage: fireshare-transcode corrupt list|clear <id>|clear-all")
		return exitUsage
	}
	registry := corrupt.NewRegistry(c.cfg.DataDir)

	switch args[0] {
	case "list":
		ids := registry.List()
		if len(ids) == 0 {
			fmt.Fprintln(c.stdout, "No videos are marked corrupt")
			return exitOK
		}
		for _, id := range ids {
			fmt.Fprintln(c.stdout, id)
		}
		return exitOK

	case "clear":
		if len(args) != 2 {
			fmt.Fprintln(c.stderr, "Usage: fireshare-transcode corrupt clear <id>")
			return exitUsage
		}
		removed, err := registry.Clear(args[1])
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return exitError
		}
		if !removed {
			fmt.Fprintf(c.stdout, "Video %s is not marked corrupt\n", args[1])
			return exitOK
		}
		fmt.Fprintf(c.stdout, "Cleared corrupt status for %s\n", args[1])
		return exitOK

	case "clear-all":
		n, err := registry.ClearAll()
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintf(c.stdout, "Cleared corrupt status for %d videos\n", n)
		return exitOK

	default:
		fmt.Fprintf(c.stderr, "Unknown corrupt command: %s\n", sanitizeCommand(args[0]))
		return exitUsage
	}
}

// progressSink returns the status store, decorated with a live progress
// line when stdout is a terminal.
func (c *cli) progressSink(store *status.Store) batch.StatusSink {
	f, ok := c.stdout.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return store
	}
	return &terminalProgress{StatusSink: store, out: f, started: time.Now()}
}

// terminalProgress redraws a single progress line as the batch advances.
type terminalProgress struct {
	batch.StatusSink
	out     io.Writer
	started time.Time
	drawn   bool
}

func (p *terminalProgress) Write(current, total int, currentVideo string, pid int) {
	p.StatusSink.Write(current, total, currentVideo, pid)
	if total == 0 {
		return
	}
	fmt.Fprintf(p.out, "\r\033[K[%d/%d] %s (%v elapsed)", current, total, truncate(currentVideo, 60),
		time.Since(p.started).Round(time.Second))
	p.drawn = true
}

func (p *terminalProgress) Clear() {
	p.StatusSink.Clear()
	if p.drawn {
		fmt.Fprintln(p.out)
		p.drawn = false
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
