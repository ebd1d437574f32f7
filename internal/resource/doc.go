// Package resource implements the Controller that governs the process-wide
// resources used by array reads.
//
//	┌───────────────────────────────────────────────────────────┐
//	│                       Controller                          │
//	├──────────────────┬──────────────────┬─────────────────────┤
//	│  Buffer memory   │  Fetch slots     │  IO rate limiter    │
//	│  (fail-fast)     │  (semaphore)     │  (token bucket)     │
//	├──────────────────┼──────────────────┼─────────────────────┤
//	│  ReserveMemory   │  AcquireFetch    │  AcquireIO          │
//	│  ReleaseMemory   │  ReleaseFetch    │                     │
//	│  MemoryUsage     │                  │                     │
//	└──────────────────┴──────────────────┴─────────────────────┘
//
// # Memory
//
// Every submitted reader reserves its read buffer up front. ReserveMemory is
// non-blocking and fails with ErrMemoryLimitExceeded when the budget is
// exhausted; callers decide whether to retry, shrink or give up:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 30})
//	if err := rc.ReserveMemory(64 << 20); err != nil {
//	    return err
//	}
//	defer rc.ReleaseMemory(64 << 20)
//
// # Fetch slots
//
// Fragment fetches from the blob store acquire a slot first, which bounds the
// number of concurrent object reads across all readers sharing a Controller.
//
// # IO
//
// AcquireIO paces fragment reads to IOBytesPerSec. Requests larger than one
// second of budget are split into burst-sized waits.
//
// A nil *Controller is valid and imposes no limits.
package resource
