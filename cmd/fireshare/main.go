package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"fireshare/internal/batch"
	"fireshare/internal/corrupt"
	"fireshare/internal/database"
	"fireshare/internal/filesystem"
	"fireshare/internal/handlers"
	"fireshare/internal/indexer"
	"fireshare/internal/logging"
	"fireshare/internal/metrics"
	"fireshare/internal/middleware"
	"fireshare/internal/pipeline"
	"fireshare/internal/poster"
	"fireshare/internal/scheduler"
	"fireshare/internal/startup"
	"fireshare/internal/status"
	"fireshare/internal/transcoder"
)

const (
	scanJobName             = "scan"
	metricsCollectInterval  = time.Minute
	shutdownTimeout         = 30 * time.Second
	schedulerStopTimeout    = 20 * time.Second
	databaseStatsQueryLimit = 10 * time.Second
)

func main() {
	startTime := time.Now()

	memConfig := startup.ConfigureMemoryLimit()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memConfig)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		metrics.AppInfo.WithLabelValues(startup.Version, startup.Commit, startup.GoVersion).Set(1)
		filesystem.SetObserver(metrics.NewFilesystemObserver())
	}

	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn("Failed to close database: %v", err)
		}
	}()
	startup.LogDatabaseInit(time.Since(dbStart))

	settings, err := startup.LoadTranscodeSettings(config.DataDir)
	if err != nil {
		logging.Warn("Failed to load transcode settings, using defaults: %v", err)
		settings = startup.DefaultTranscodeSettings()
	}
	transcodingEnabled := startup.LogTranscoderInit(config.TranscodingEnabled, settings)

	trans := transcoder.New(transcoder.Config{
		BaseTimeout:       config.TranscodeTimeout,
		ValidationTimeout: config.ValidationTimeout,
	})
	if transcodingEnabled && config.UseGPU {
		report := trans.NVENC().CheckGPU(ctx)
		if !report.Available {
			logging.Warn("  NVENC unavailable, GPU transcodes will fall back to CPU encoders")
		}
	}

	statusStore := status.NewStore(config.DataDir)
	registry := corrupt.NewRegistry(config.DataDir)

	statusStore.RecoverStale()

	idx := indexer.New(db, trans.Prober(), config.VideoDir)

	runner := batch.New(batch.Config{
		Store:        db,
		Transcoder:   trans,
		Status:       statusStore,
		Corrupt:      registry,
		VideoDir:     config.VideoDir,
		ProcessedDir: config.ProcessedDir,
	})

	posters := poster.New(poster.Config{
		Store:        db,
		Runner:       trans.Runner(),
		VideoDir:     config.VideoDir,
		ProcessedDir: config.ProcessedDir,
		Skip:         config.PosterSkip,
	})

	pipe := pipeline.New(pipeline.Config{
		Scanner:    idx,
		Posters:    posters,
		Transcoder: runner,
		Lock:       statusStore,
		Settings: func() (startup.TranscodeSettings, error) {
			return startup.LoadTranscodeSettings(config.DataDir)
		},
		TranscodingEnabled: transcodingEnabled,
		UseGPU:             config.UseGPU,
	})

	var collector *metrics.Collector
	if config.MetricsEnabled {
		collector = metrics.NewCollector(&statsAdapter{db: db, registry: registry}, metricsCollectInterval)
		collector.Start()
	}

	startup.LogSchedulerInit(config.ScanSchedule)
	sched := scheduler.New(ctx)
	var triggerScan func() error
	if config.ScanSchedule != "" {
		err := sched.Add(scanJobName, config.ScanSchedule, func(jobCtx context.Context) {
			runPipeline(jobCtx, pipe)
		})
		if err != nil {
			startup.LogFatal("Failed to schedule scans: %v", err)
		}
		sched.Start()
		triggerScan = func() error { return sched.Trigger(scanJobName) }

		// Scan once at startup rather than waiting for the first tick.
		if err := triggerScan(); err != nil {
			logging.Warn("Failed to start initial scan: %v", err)
		}
	}

	h := handlers.New(handlers.Config{
		Library:      db,
		Scans:        idx,
		Progress:     statusStore,
		Corrupt:      registry,
		VideoDir:     config.VideoDir,
		ProcessedDir: config.ProcessedDir,
		TriggerScan:  triggerScan,
	})

	router := setupRouter(h, config.MetricsEnabled)
	handler := middleware.Logger(middleware.DefaultLoggingConfig())(router)

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})

	signalName := "SIGINT/SIGTERM"
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logging.Error("Server error: %v", err)
		signalName = "server error"
	}
	stop()

	startup.LogShutdownInitiated(signalName)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping scheduler")
	sched.Stop(schedulerStopTimeout)
	startup.LogShutdownStepComplete("Scheduler stopped")

	startup.LogShutdownStep("Cleaning up transcoder")
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	if collector != nil {
		collector.Stop()
	}

	startup.LogShutdownComplete()
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics)

	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/scan", h.TriggerScan).Methods(http.MethodPost)
	api.HandleFunc("/videos/{id}", h.GetVideo).Methods(http.MethodGet)
	api.HandleFunc("/videos/{id}/stream", h.StreamVideo).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/corrupt", h.ListCorrupt).Methods(http.MethodGet)
	api.HandleFunc("/corrupt", h.ClearAllCorrupt).Methods(http.MethodDelete)
	api.HandleFunc("/corrupt/{id}", h.ClearCorrupt).Methods(http.MethodDelete)

	return r
}

func runPipeline(ctx context.Context, pipe *pipeline.Pipeline) {
	report, err := pipe.Run(ctx)
	switch {
	case err == nil:
		logging.Info("Scan complete: %d files, %d added, %d updated, %d missing",
			report.Scan.Files, report.Scan.Added, report.Scan.Updated, report.Scan.Missing)
	case errors.Is(err, status.ErrLocked), errors.Is(err, context.Canceled):
	default:
		logging.Error("Scheduled run failed: %v", err)
	}
}

// libraryStatsSource is the catalog query behind statsAdapter.
type libraryStatsSource interface {
	LibraryStats(ctx context.Context) (database.LibraryStats, error)
}

// statsAdapter feeds library and registry counts to the metrics collector.
type statsAdapter struct {
	db       libraryStatsSource
	registry interface{ Count() int }
}

func (a *statsAdapter) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), databaseStatsQueryLimit)
	defer cancel()

	stats, err := a.db.LibraryStats(ctx)
	if err != nil {
		logging.Warn("Failed to collect library stats: %v", err)
	}

	return metrics.Stats{
		TotalVideos:  stats.AvailableVideos,
		With1080p:    stats.With1080p,
		With720p:     stats.With720p,
		CorruptCount: a.registry.Count(),
	}
}
