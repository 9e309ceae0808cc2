package metrics

import (
	"time"

	"bandwidth-proxy/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats is a point-in-time view of the proxy's bounded resources
type Stats struct {
	PermitsInUse    int
	PermitsWaiting  int
	PermitsCapacity int
	CodecWorkers    int
	CodecBusy       int
	CodecWaiting    int
	MemoryAlloc     uint64
}

// StatsFunc adapts a function to StatsProvider.
type StatsFunc func() Stats

// GetStats implements StatsProvider.
func (f StatsFunc) GetStats() Stats {
	return f()
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	logger        *logging.Logger
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration, logger *logging.Logger) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		logger:        logger,
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
	// Collect immediately on start
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

	FetchPermitsInUse.Set(float64(stats.PermitsInUse))
	FetchPermitsWaiting.Set(float64(stats.PermitsWaiting))
	FetchPermitsCapacity.Set(float64(stats.PermitsCapacity))
	CodecWorkers.Set(float64(stats.CodecWorkers))
	CodecWorkersBusy.Set(float64(stats.CodecBusy))
	CodecJobsWaiting.Set(float64(stats.CodecWaiting))
	MemoryAllocBytes.Set(float64(stats.MemoryAlloc))

	c.logger.Debug("Metrics collected: permits=%d waiting=%d codec_busy=%d/%d",
		stats.PermitsInUse, stats.PermitsWaiting, stats.CodecBusy, stats.CodecWorkers)
}
