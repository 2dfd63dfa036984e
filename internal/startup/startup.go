package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fireshare/internal/logging"
	"fireshare/internal/scheduler"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

const (
	defaultTranscodeTimeout  = 7200 * time.Second
	defaultValidationTimeout = 30 * time.Second
	defaultScanSchedule      = "@every 5m"
)

// Config holds all application configuration
type Config struct {
	DataDir      string
	VideoDir     string
	ProcessedDir string
	Port         string

	TranscodingEnabled bool
	UseGPU             bool
	// TranscodeTimeout is the base per-attempt timeout used when a source
	// duration is unknown.
	TranscodeTimeout  time.Duration
	ValidationTimeout time.Duration
	// ScanSchedule is a cron expression. Empty disables scheduled scans.
	ScanSchedule   string
	MetricsEnabled bool
	// PosterSkip is how far into a video its poster frame is taken, as a
	// fraction of the duration (THUMBNAIL_VIDEO_LOCATION percent).
	PosterSkip float64

	// Derived paths
	DatabasePath string
	DerivedDir   string
}

// LoadConfig loads and validates configuration from environment variables.
// When ENV_FILE is set, that file is loaded first; variables already in the
// environment win.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := ReadConfig()
	if err != nil {
		return nil, err
	}

	logging.Info("  DATA_DIRECTORY:      %s", config.DataDir)
	logging.Info("  VIDEO_DIRECTORY:     %s", config.VideoDir)
	logging.Info("  PROCESSED_DIRECTORY: %s", config.ProcessedDir)
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  ENABLE_TRANSCODING:  %v", config.TranscodingEnabled)
	logging.Info("  TRANSCODE_GPU:       %v", config.UseGPU)
	logging.Info("  TRANSCODE_TIMEOUT:   %v", config.TranscodeTimeout)
	logging.Info("  VALIDATION_TIMEOUT:  %v", config.ValidationTimeout)
	logging.Info("  SCAN_SCHEDULE:       %q", config.ScanSchedule)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  THUMBNAIL_VIDEO_LOCATION: %.0f%%", config.PosterSkip*100)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	// Data directory holds the database and state files (required)
	if err := ensureDirectory(config.DataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}
	if err := testWriteAccess(config.DataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	// Video directory is mounted, never created
	if info, err := os.Stat(config.VideoDir); err != nil || !info.IsDir() {
		logging.Warn("  Video directory %s is not available", config.VideoDir)
	}

	if config.TranscodingEnabled && !setupOptionalDir(config.DerivedDir, "derived") {
		config.TranscodingEnabled = false
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:         ENABLED (required)")
	logging.Info("    Transcoding:      %s", enabledString(config.TranscodingEnabled))
	logging.Info("    Scheduled scans:  %s", enabledString(config.ScanSchedule != ""))
	logging.Info("    Metrics:          %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// ReadConfig resolves configuration from ENV_FILE and the environment
// without logging or touching the directories. Command line tools use it
// directly.
func ReadConfig() (*Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load ENV_FILE %s: %w", envFile, err)
		}
		logging.Debug("Loaded environment from %s", envFile)
	}
	return configFromEnv()
}

// configFromEnv reads and resolves the environment without touching the
// filesystem.
func configFromEnv() (*Config, error) {
	dataDir, err := filepath.Abs(getEnv("DATA_DIRECTORY", "/data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	videoDir, err := filepath.Abs(getEnv("VIDEO_DIRECTORY", "/videos"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve video directory path: %w", err)
	}
	processedDir, err := filepath.Abs(getEnv("PROCESSED_DIRECTORY", "/processed"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve processed directory path: %w", err)
	}

	schedule := strings.TrimSpace(getEnvRaw("SCAN_SCHEDULE", defaultScanSchedule))
	if schedule != "" {
		if err := scheduler.ValidateSchedule(schedule); err != nil {
			return nil, fmt.Errorf("SCAN_SCHEDULE: %w", err)
		}
	}

	return &Config{
		DataDir:            dataDir,
		VideoDir:           videoDir,
		ProcessedDir:       processedDir,
		Port:               getEnv("PORT", "8080"),
		TranscodingEnabled: getEnvBool("ENABLE_TRANSCODING", false),
		UseGPU:             getEnvBool("TRANSCODE_GPU", false),
		TranscodeTimeout:   getEnvSeconds("TRANSCODE_TIMEOUT", defaultTranscodeTimeout),
		ValidationTimeout:  getEnvDuration("VALIDATION_TIMEOUT", defaultValidationTimeout),
		ScanSchedule:       schedule,
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		PosterSkip:         getEnvPercent("THUMBNAIL_VIDEO_LOCATION"),
		DatabasePath:       filepath.Join(dataDir, "db.sqlite"),
		DerivedDir:         filepath.Join(processedDir, "derived"),
	}, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    Transcoding will be disabled")
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    Transcoding will be disabled")
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogTranscoderInit logs transcoder initialization and checks FFmpeg.
// It reports whether ffmpeg is usable.
func LogTranscoderInit(enabled bool, settings TranscodeSettings) bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("TRANSCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	if !enabled {
		logging.Info("  Transcoding disabled (set ENABLE_TRANSCODING=true to enable)")
		return false
	}

	logging.Info("  Encoder preference: %s", settings.EncoderPreference)
	logging.Info("  Resolutions:        %v", settings.Resolutions())
	logging.Info("  Auto transcode:     %v", settings.AutoTranscode)

	if err := checkFFmpeg(); err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Variants will not be generated")
		return false
	}
	logging.Info("  [OK] FFmpeg is available")
	return true
}

// LogSchedulerInit logs the scan schedule
func LogSchedulerInit(schedule string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SCHEDULER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if schedule == "" {
		logging.Info("  Scheduled scans disabled (SCAN_SCHEDULE is empty)")
		return
	}
	logging.Info("  Scan schedule: %s", schedule)
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Health:        http://0.0.0.0:%s/healthz", config.Port)
	logging.Info("    Status:        http://0.0.0.0:%s/status", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    _______                __
   / ____(_)_______  _____/ /_  ____ _________
  / /_  / / ___/ _ \/ ___/ __ \/ __ '/ ___/ _ \
 / __/ / / /  /  __(__  ) / / / /_/ / /  /  __/
/_/   /_/_/   \___/____/_/ /_/\__,_/_/   \___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func checkFFmpeg() error {
	for _, tool := range []string{"ffmpeg", "ffprobe"} {
		path, err := exec.LookPath(tool)
		if err != nil {
			return fmt.Errorf("%s not found in PATH", tool)
		}
		logging.Debug("  %s path: %s", tool, path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvRaw distinguishes an unset variable from one set to "".
func getEnvRaw(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvSeconds reads a whole number of seconds.
func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		logging.Warn("Invalid %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return time.Duration(seconds) * time.Second
}

// getEnvPercent reads a whole percentage in (0, 100] as a fraction.
// Anything else is 0.
func getEnvPercent(key string) float64 {
	value := os.Getenv(key)
	if value == "" {
		return 0
	}
	percent, err := strconv.Atoi(value)
	if err != nil {
		logging.Warn("Invalid %s: %q, using 0", key, value)
		return 0
	}
	if percent <= 0 || percent > 100 {
		return 0
	}
	return float64(percent) / 100
}

// getEnvDuration accepts a Go duration or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return getEnvSeconds(key, defaultValue)
}
