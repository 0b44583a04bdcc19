package asyncrt

import (
	"time"

	"github.com/ygrebnov/asyncrt/metrics"
)

// config holds Scheduler configuration, assembled by Option functions passed
// to NewScheduler.
type config struct {
	// maxFibers caps the number of concurrently live fiber goroutines.
	// Zero (default) means the fiber pool is dynamic.
	// Default: 0 (dynamic pool)
	maxFibers uint

	// readyBufferSize is stored from WithReadyBuffer. The Scheduler's ready
	// queue is an unbounded slice and does not read this value.
	// Default: 0
	readyBufferSize uint

	// fatalBufferSize sizes the outward fatal-errors channel (errors raised
	// by panicking cancellation hooks, spec §4.C/§5).
	// Default: 64.
	fatalBufferSize uint

	// shutdownTimeout is stored from WithShutdownTimeout. Dispose does not
	// read it: it always waits for every shutdown hook to return.
	// Default: 0.
	shutdownTimeout time.Duration

	// metrics is the instrument provider the Scheduler reports its task
	// metrics through; Channels, Deferreds, and sockets record none.
	// Default: metrics.NewNoopProvider().
	metrics metrics.Provider
}

// defaultConfig centralizes default values for config. These defaults are
// applied by NewScheduler before Option functions are applied.
func defaultConfig() config {
	return config{
		maxFibers:       0,
		readyBufferSize: 0,
		fatalBufferSize: 64,
		shutdownTimeout: 0,
		metrics:         metrics.NewNoopProvider(),
	}
}

// validateConfig performs lightweight invariant checks. Reserved for future
// validation expansions; all currently assembled configs are valid.
func validateConfig(_ *config) error {
	return nil
}
