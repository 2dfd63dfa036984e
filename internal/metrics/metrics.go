package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fireshare_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fireshare_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Streaming metrics
var (
	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fireshare_streams_active",
			Help: "Number of video streams currently being served",
		},
	)

	StreamBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_stream_bytes_total",
			Help: "Total bytes of video streamed to clients",
		},
		[]string{"quality"},
	)

	StreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_streams_total",
			Help: "Total video streams by quality and result",
		},
		[]string{"quality", "result"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fireshare_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
)

// Library metrics, refreshed by the Collector
var (
	LibraryVideosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fireshare_library_videos_total",
			Help: "Total number of available videos in the catalog",
		},
	)

	LibraryVariantsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fireshare_library_variants_total",
			Help: "Number of videos with a transcoded variant, by resolution",
		},
		[]string{"resolution"},
	)

	CorruptVideosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fireshare_corrupt_videos_total",
			Help: "Number of videos currently flagged as corrupt",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fireshare_indexer_runs_total",
			Help: "Total number of library scans",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fireshare_indexer_last_run_duration_seconds",
			Help: "Duration of the last library scan in seconds",
		},
	)

	IndexerFilesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fireshare_indexer_files_processed_total",
			Help: "Total number of video files processed by the indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fireshare_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)
)

// Transcoder metrics
var (
	TranscoderJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_transcoder_jobs_total",
			Help: "Total number of variant transcode jobs by outcome",
		},
		[]string{"outcome"},
	)

	TranscoderJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fireshare_transcoder_job_duration_seconds",
			Help:    "Variant transcode job duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
	)

	TranscoderEncoderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_transcoder_encoder_attempts_total",
			Help: "Encoder attempts by encoder and result",
		},
		[]string{"encoder", "result"},
	)

	TranscoderValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_transcoder_validations_total",
			Help: "Source validations by result kind",
		},
		[]string{"result"},
	)

	TranscoderJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fireshare_transcoder_jobs_in_progress",
			Help: "Number of transcoding subprocesses currently running",
		},
	)
)

// Batch metrics
var (
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_batch_runs_total",
			Help: "Total number of batch transcode runs by result",
		},
		[]string{"result"},
	)

	BatchIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fireshare_batch_running",
			Help: "Whether a batch transcode is currently running (1 = running, 0 = idle)",
		},
	)

	BatchProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fireshare_batch_progress",
			Help: "Progress of the running batch (current and total videos)",
		},
		[]string{"field"},
	)
)

// Poster metrics
var (
	PostersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_posters_total",
			Help: "Total poster generation attempts by result",
		},
		[]string{"result"},
	)

	PosterDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fireshare_poster_duration_seconds",
			Help:    "Time taken to extract and write a poster",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_filesystem_retry_attempts_total",
			Help: "Retries performed after stale NFS file handles",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fireshare_filesystem_stale_errors_total",
			Help: "Stale NFS file handle errors observed",
		},
		[]string{"operation"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fireshare_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
