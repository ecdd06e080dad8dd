package metrics

import (
	"os"
	"sync"
	"time"

	"refboard/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// DBStatsUpdater is implemented by providers that can also refresh the
// database connection gauges.
type DBStatsUpdater interface {
	UpdateDBMetrics()
}

// Stats holds the current statistics
type Stats struct {
	TotalImages   int
	OrderedImages int
	TotalTags     int
	TotalVectors  int
	IndexReady    bool
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector. dbPath may be empty, in which
// case file size gauges are left alone.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
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
	c.collectDBSize()

	if c.statsProvider == nil {
		return
	}
	if u, ok := c.statsProvider.(DBStatsUpdater); ok {
		u.UpdateDBMetrics()
	}

	stats := c.statsProvider.GetStats()

	CatalogImagesTotal.Set(float64(stats.TotalImages))
	CatalogOrderedImages.Set(float64(stats.OrderedImages))
	CatalogTagsTotal.Set(float64(stats.TotalTags))
	CatalogVectorsTotal.Set(float64(stats.TotalVectors))
	if stats.IndexReady {
		VectorIndexAvailable.Set(1)
	} else {
		VectorIndexAvailable.Set(0)
	}

	logging.Debug("Metrics collected: images=%d, ordered=%d, tags=%d, vectors=%d",
		stats.TotalImages, stats.OrderedImages, stats.TotalTags, stats.TotalVectors)
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}

	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}
	for label, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
