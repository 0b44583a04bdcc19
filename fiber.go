package asyncrt

import (
	"fmt"

	"github.com/ygrebnov/asyncrt/pool"
)

// FiberStatus is the lifecycle state of a Fiber (spec component B).
type FiberStatus uint8

const (
	FiberSuspended FiberStatus = iota
	FiberRunning
	FiberFinished
	FiberFailed
)

// FiberEntry is the function a Fiber runs. It receives the Fiber itself so
// it can call Yield to suspend on a pending Op.
type FiberEntry func(f *Fiber) (any, error)

type resumeMsg struct {
	value any
	err   error
}

type yieldMsg struct {
	done   bool
	result any
	err    error
}

// Fiber is a stackful coroutine realized as a goroutine handed off over two
// unbuffered channels, so that Start/Resume (called from the Scheduler's own
// goroutine) and the fiber body never run concurrently: each blocks
// immediately after signaling the other. This is what keeps a Scheduler
// single-threaded even though every Fiber is backed by a real goroutine.
type Fiber struct {
	status   FiberStatus
	resumeCh chan resumeMsg
	yieldCh  chan yieldMsg
	pool     pool.Pool
}

// fiberSlot is a reusable goroutine: it parks on jobs and runs whatever
// closure it is handed, then parks again. Pooling these (via pool.Pool)
// avoids spawning a fresh OS-schedulable goroutine for every short-lived
// fiber, the same way the teacher's worker pool amortized goroutine reuse
// across tasks.
type fiberSlot struct {
	jobs chan func()
}

func newFiberSlot() *fiberSlot {
	s := &fiberSlot{jobs: make(chan func(), 1)}
	go func() {
		for job := range s.jobs {
			job()
		}
	}()
	return s
}

// NewFiber creates a Suspended Fiber that will draw its goroutine from p.
// p may be pool.NewDynamic(...) (default) or pool.NewFixed(n, ...).
func NewFiber(p pool.Pool) *Fiber {
	return &Fiber{
		status:   FiberSuspended,
		resumeCh: make(chan resumeMsg),
		yieldCh:  make(chan yieldMsg),
		pool:     p,
	}
}

func (f *Fiber) Status() FiberStatus { return f.status }

// Start launches entry on a pooled goroutine and blocks until the fiber
// either yields (suspends on an Op) or finishes.
func (f *Fiber) Start(entry FiberEntry) (suspended bool, result any, err error) {
	f.status = FiberRunning
	slot := f.pool.Get().(*fiberSlot)

	slot.jobs <- func() {
		defer func() {
			if r := recover(); r != nil {
				f.status = FiberFailed
				f.yieldCh <- yieldMsg{done: true, err: fmt.Errorf("fiber panicked: %v", r)}
				f.pool.Put(slot)
			}
		}()

		res, e := entry(f)
		if e != nil {
			f.status = FiberFailed
		} else {
			f.status = FiberFinished
		}
		f.yieldCh <- yieldMsg{done: true, result: res, err: e}
		f.pool.Put(slot)
	}

	msg := <-f.yieldCh
	if msg.done {
		return false, msg.result, msg.err
	}
	return true, nil, nil
}

// Resume injects value (or err, if non-nil) into a Suspended fiber's pending
// Yield call and blocks until the fiber yields again or finishes.
func (f *Fiber) Resume(value any, resumeErr error) (suspended bool, result any, err error) {
	f.status = FiberRunning
	f.resumeCh <- resumeMsg{value: value, err: resumeErr}

	msg := <-f.yieldCh
	if msg.done {
		return false, msg.result, msg.err
	}
	return true, nil, nil
}

// Yield suspends the calling fiber (must be invoked from inside the entry
// function, i.e. on the fiber's own goroutine) and returns whatever value or
// error the next Resume call supplies.
func (f *Fiber) Yield() (any, error) {
	f.status = FiberSuspended
	f.yieldCh <- yieldMsg{done: false}
	msg := <-f.resumeCh
	f.status = FiberRunning
	return msg.value, msg.err
}
