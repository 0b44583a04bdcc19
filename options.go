package asyncrt

import (
	"fmt"
	"time"

	"github.com/ygrebnov/asyncrt/metrics"
)

// Option configures a Scheduler. Use NewScheduler(opts...) to construct one.
type Option func(*configOptions)

// internal builder state for options assembly.
type configOptions struct {
	cfg          config
	poolSelected poolType
}

type poolType int

const (
	poolUnspecified poolType = iota
	poolDynamic
	poolFixed
)

// WithFixedFiberPool caps the Scheduler's fiber pool at n concurrently live
// goroutines (n must be > 0).
func WithFixedFiberPool(n uint) Option {
	return func(co *configOptions) {
		if co.poolSelected != poolUnspecified && co.poolSelected != poolFixed {
			panic("conflicting fiber pool options: WithFixedFiberPool and WithDynamicFiberPool both specified")
		}
		if n == 0 {
			panic("WithFixedFiberPool requires n > 0")
		}
		co.poolSelected = poolFixed
		co.cfg.maxFibers = n
	}
}

// WithDynamicFiberPool selects a dynamic-size fiber pool (the default).
func WithDynamicFiberPool() Option {
	return func(co *configOptions) {
		if co.poolSelected != poolUnspecified && co.poolSelected != poolDynamic {
			panic("conflicting fiber pool options: WithFixedFiberPool and WithDynamicFiberPool both specified")
		}
		co.poolSelected = poolDynamic
		co.cfg.maxFibers = 0
	}
}

// WithReadyBuffer stores a ready-task buffer size in the Scheduler's
// config. The ready queue is an unbounded slice and does not read it.
func WithReadyBuffer(size uint) Option {
	return func(co *configOptions) { co.cfg.readyBufferSize = size }
}

// WithFatalBuffer sizes the outward fatal-errors channel.
func WithFatalBuffer(size uint) Option {
	return func(co *configOptions) { co.cfg.fatalBufferSize = size }
}

// WithShutdownTimeout stores a shutdown timeout in the Scheduler's config.
// Dispose does not read it and always waits for every shutdown hook to
// return.
func WithShutdownTimeout(d time.Duration) Option {
	return func(co *configOptions) { co.cfg.shutdownTimeout = d }
}

// WithMetrics installs the metrics.Provider the Scheduler reports its task
// instruments through.
func WithMetrics(p metrics.Provider) Option {
	return func(co *configOptions) {
		if p != nil {
			co.cfg.metrics = p
		}
	}
}

// NewScheduler builds a config from defaults plus opts and constructs a
// Scheduler with it.
func NewScheduler(opts ...Option) *Scheduler {
	co := configOptions{cfg: defaultConfig(), poolSelected: poolUnspecified}
	for _, opt := range opts {
		if opt == nil {
			panic("nil scheduler option")
		}
		opt(&co)
	}

	if co.poolSelected == poolUnspecified {
		co.poolSelected = poolDynamic
		co.cfg.maxFibers = 0
	}

	if err := validateConfig(&co.cfg); err != nil {
		panic(fmt.Errorf("invalid scheduler config: %w", err))
	}

	return newScheduler(&co.cfg)
}
