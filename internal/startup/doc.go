// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is loaded from environment variables via [LoadConfig]. When
// ENV_FILE names a dotenv file it is loaded first; variables already set in
// the environment are not overridden.
//
//   - DATA_DIRECTORY: database, config.json and state files (default: /data)
//   - VIDEO_DIRECTORY: source videos, mounted read-only (default: /videos)
//   - PROCESSED_DIRECTORY: holds derived/ variants (default: /processed)
//   - ENABLE_TRANSCODING: generate resolution variants (default: false)
//   - TRANSCODE_GPU: try NVENC encoders before CPU ones (default: false)
//   - TRANSCODE_TIMEOUT: base per-attempt timeout in seconds (default: 7200)
//   - VALIDATION_TIMEOUT: per-subprocess validation timeout (default: 30s)
//   - SCAN_SCHEDULE: cron expression for scan + transcode; empty disables (default: @every 5m)
//   - PORT: HTTP port for health, status and metrics (default: 8080)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - LOG_LEVEL / DEBUG: see package logging
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see [ConfigureMemoryLimit]
//
// Transcoding options edited from the UI live in DATA_DIRECTORY/config.json
// and are read with [LoadTranscodeSettings] at the start of each run:
//
//	{"transcoding": {"encoder_preference": "auto", "enable_1080p": true,
//	  "enable_720p": true, "enable_480p": true, "auto_transcode": true}}
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
