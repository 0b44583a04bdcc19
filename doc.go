// Package asyncrt is a cooperative, single-threaded task runtime: fibers
// (goroutines driven by explicit channel handoff), promise-style Deferreds,
// CSP channels with a non-deterministic select, and a cancellation-context
// tree, all multiplexed by one Scheduler per OS thread.
//
// Constructors
//   - NewScheduler(opts ...Option): options-based constructor, mirrors the
//     functional-options style used throughout this package.
//
// Defaults
// Unless overridden, the following defaults apply to a newly created Scheduler:
//   - Fiber pool: dynamic (grows/shrinks via sync.Pool)
//   - ReadyBufferSize: 0 (stored only; the ready queue is an unbounded slice)
//   - ShutdownTimeout: 0 (stored only; Dispose always waits for hooks to finish)
//   - Metrics: metrics.NoopProvider{}
//
// Single-threaded cooperative scheduling
// Exactly one fiber is ever logically running within a given Scheduler: a
// fiber goroutine blocks immediately after signaling a yield, and the
// Scheduler's own Run goroutine blocks immediately after resuming one. There
// is never a moment where two goroutines belonging to the same Scheduler are
// both doing work, so shared state inside one Scheduler never needs locking.
// Multiple Schedulers may run concurrently on separate goroutines; they share
// no package-level state.
//
// Channel lifecycle
// Channels, Deferreds, and sockets are not bound to a Scheduler and register
// no dispose hook with one; Dispose runs only the hooks added through
// Scheduler.AddShutdownHook. The library does not close channels automatically;
// callers close them explicitly once no further sends are expected.
//
// Fiber pools
//   - Dynamic pool (default): grows and shrinks as needed via sync.Pool.
//   - Fixed pool: caps the number of concurrently live fiber goroutines.
package asyncrt
