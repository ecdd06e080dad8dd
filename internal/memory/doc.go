// Package memory sets the Go heap limit for containerized runs and gives
// the importer a backpressure signal when decoding images pushes the heap
// toward that limit.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before significant allocations:
//
//   - GOMEMLIMIT: standard Go variable. If set it wins and nothing else is read.
//   - MEMORY_LIMIT: container memory limit in bytes, typically passed through
//     the Kubernetes Downward API.
//   - MEMORY_RATIO: fraction of MEMORY_LIMIT given to the Go heap (default
//     0.85). The remainder covers SQLite page cache, cgo allocations and
//     goroutine stacks.
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//
// GOMEMLIMIT is a soft limit on Go heap allocations only. It does not bound
// memory allocated by cgo, which includes the SQLite driver.
//
// # Backpressure
//
// A [Monitor] samples heap usage on an interval. At Config.PauseAt it
// pauses; callers blocked in [Monitor.WaitIfPaused] resume once usage drops
// below Config.ResumeBelow:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.WaitIfPaused(ctx); err != nil {
//	    return err
//	}
//	img, err := analysis.Decode(ctx, path)
//
// Without a configured limit the monitor never pauses.
package memory
