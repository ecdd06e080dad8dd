package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"refboard/internal/logging"
	"refboard/internal/metrics"
)

// Config sets when a Monitor pauses and resumes decoding.
type Config struct {
	// LimitBytes overrides the soft limit read from the runtime (0 = GOMEMLIMIT).
	LimitBytes int64

	// PauseAt is the heap/limit ratio at which decoding pauses.
	PauseAt float64

	// ResumeBelow is the ratio under which a paused monitor resumes.
	ResumeBelow float64

	Interval time.Duration
}

// DefaultConfig pauses at 85% of the limit and resumes under 70%.
func DefaultConfig() Config {
	return Config{PauseAt: 0.85, ResumeBelow: 0.7, Interval: time.Second}
}

// Monitor samples heap usage and holds back image decoding while the heap
// is close to the soft memory limit.
type Monitor struct {
	cfg       Config
	limit     int64
	readAlloc func() uint64

	done     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	alloc   uint64
	paused  bool
	resumed chan struct{} // closed when a pause ends
}

// NewMonitor returns a stopped monitor. Call Start to begin sampling.
func NewMonitor(cfg Config) *Monitor {
	limit := cfg.LimitBytes
	if limit == 0 {
		// math.MaxInt64 means no limit was set
		if rt := debug.SetMemoryLimit(-1); rt > 0 && rt < 1<<62 {
			limit = rt
		}
	}
	return &Monitor{
		cfg:       cfg,
		limit:     limit,
		readAlloc: heapAlloc,
		done:      make(chan struct{}),
		resumed:   make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Alloc
}

// Start samples in the background until Stop. With no limit it does nothing.
func (m *Monitor) Start() {
	if m.limit == 0 {
		logging.Debug("No memory limit, import backpressure disabled")
		return
	}
	logging.Debug("Import backpressure at %.0f%% of %s", m.cfg.PauseAt*100, formatBytes(m.limit))
	go func() {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.checkMemory()
			case <-m.done:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter. It is idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Monitor) checkMemory() {
	alloc := m.readAlloc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.alloc = alloc
	if m.limit <= 0 {
		return
	}
	ratio := float64(alloc) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(ratio)

	if !m.paused && ratio >= m.cfg.PauseAt {
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryGCPauses.Inc()
		logging.Warn("Heap at %.1f%% of limit, pausing image decoding", ratio*100)
		go runtime.GC()
		return
	}
	if m.paused && ratio < m.cfg.ResumeBelow {
		m.paused = false
		metrics.MemoryPaused.Set(0)
		logging.Info("Heap back to %.1f%% of limit, resuming image decoding", ratio*100)
		close(m.resumed)
		m.resumed = make(chan struct{})
	}
}

// WaitIfPaused returns at once unless the monitor is paused. While paused
// it blocks until the pause ends or the monitor stops (nil) or ctx ends
// (ctx.Err()).
func (m *Monitor) WaitIfPaused(ctx context.Context) error {
	m.mu.RLock()
	paused, resumed := m.paused, m.resumed
	m.mu.RUnlock()
	if !paused {
		return nil
	}

	select {
	case <-resumed:
		return nil
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsPaused reports whether decoding is currently held back.
func (m *Monitor) IsPaused() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// GetUsage returns the last sampled heap size as a fraction of the limit,
// or 0 without a limit.
func (m *Monitor) GetUsage() float64 {
	if m.limit == 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.alloc) / float64(m.limit)
}
