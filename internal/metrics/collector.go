package metrics

import (
	"time"

	"fireshare/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current library statistics
type Stats struct {
	TotalVideos  int
	With1080p    int
	With720p     int
	CorruptCount int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	LibraryVideosTotal.Set(float64(stats.TotalVideos))
	LibraryVariantsTotal.WithLabelValues("1080p").Set(float64(stats.With1080p))
	LibraryVariantsTotal.WithLabelValues("720p").Set(float64(stats.With720p))
	CorruptVideosTotal.Set(float64(stats.CorruptCount))

	logging.Debug("Metrics collected: videos=%d 1080p=%d 720p=%d corrupt=%d",
		stats.TotalVideos, stats.With1080p, stats.With720p, stats.CorruptCount)
}
