package asyncrt

import (
	"fmt"
	"sync"
	"time"

	"github.com/ygrebnov/asyncrt/metrics"
	"github.com/ygrebnov/asyncrt/pool"
)

// fiberJob is one turn of work the run loop drives: either starting a fresh
// Fiber or resuming one that a prior Op settlement woke up.
type fiberJob struct {
	fn     func() (suspended bool, result any, err error)
	onDone func(result any, err error)
}

// Scheduler is the single-threaded cooperative runtime (spec component D). It
// owns the ready queue every Fiber turn is driven from, the root Context, the
// fiber pool, and the shutdown/fatal-error plumbing.
//
// Only Scheduler.runLoop ever calls Fiber.Start/Fiber.Resume, so exactly one
// Fiber is logically running at a time even though each is backed by a real
// goroutine (see fiber.go) — this is what gives callers the single-threaded
// guarantee the teacher's fifoWorkers (fifo.go) gave its sequential task
// executor, generalized from "one task at a time" to "one fiber turn at a
// time, with arbitrarily many suspended in between".
type Scheduler struct {
	pool pool.Pool

	root       *Context
	cancelRoot CancelFunc

	readyMu sync.Mutex
	ready   []*fiberJob
	wakeCh  chan struct{}
	closeCh chan struct{}

	keepaliveMu sync.Mutex
	keepalive   int
	idleCh      chan struct{}

	shutdownMu sync.Mutex
	shutdown   []func(err error)

	fatalIn chan error
	fatal   chan error

	forwarderWG sync.WaitGroup
	sendWG      sync.WaitGroup
	dc          *disposeCoordinator

	startOnce sync.Once
	cfg       *config

	tasksStarted metrics.Counter
	tasksActive  metrics.UpDownCounter
	taskDuration metrics.Histogram
}

// newScheduler is called by NewScheduler (options.go) once opts have been
// assembled into cfg.
func newScheduler(cfg *config) *Scheduler {
	newFiberSlotFn := func() interface{} { return newFiberSlot() }

	var p pool.Pool
	if cfg.maxFibers > 0 {
		p = pool.NewFixed(cfg.maxFibers, newFiberSlotFn)
	} else {
		p = pool.NewDynamic(newFiberSlotFn)
	}

	root, cancelRoot := WithCancel(NewRootContext(nil))

	s := &Scheduler{
		pool:    p,
		root:    root,
		wakeCh:  make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		idleCh:  make(chan struct{}, 1),
		fatalIn: make(chan error, cfg.fatalBufferSize),
		fatal:   make(chan error, cfg.fatalBufferSize),
		cfg:     cfg,
	}
	s.cancelRoot = cancelRoot

	s.tasksStarted = cfg.metrics.Counter("asyncrt_tasks_started", metrics.WithDescription("Tasks created"), metrics.WithUnit("1"))
	s.tasksActive = cfg.metrics.UpDownCounter("asyncrt_tasks_active", metrics.WithDescription("Tasks currently running or suspended"), metrics.WithUnit("1"))
	s.taskDuration = cfg.metrics.Histogram("asyncrt_task_duration_seconds", metrics.WithDescription("Wall-clock time from Task creation to settlement"), metrics.WithUnit("s"))

	s.dc = newDisposeCoordinator(
		func() { cancelRoot(ErrSchedulerDisposed) },
		s.runShutdownHooks,
		s.closeCh,
		&s.forwarderWG,
		&s.sendWG,
		s.drainFatal,
		func() { close(s.fatal) },
	)

	s.forwarderWG.Add(1)
	go func() {
		defer s.forwarderWG.Done()
		newFatalForwarder(s.fatalIn, s.fatal, s.closeCh, s.disposeFromFatal, &s.sendWG).run()
	}()

	go s.runLoop()

	return s
}

// Root returns the Scheduler's root Context. Every Task.Create call that
// isn't given an explicit parent Context runs under it.
func (s *Scheduler) Root() *Context { return s.root }

// Metrics returns the instrument provider configured via WithMetrics (or a
// no-op provider by default).
func (s *Scheduler) Metrics() metrics.Provider { return s.cfg.metrics }

// Fatal returns the channel fatal cancellation-hook-panic errors are
// delivered on (spec §4.C, §5).
func (s *Scheduler) Fatal() <-chan error { return s.fatal }

// AddShutdownHook registers fn to run, with the Dispose cause, during the
// Scheduler's shutdown sequence — e.g. a Channel or socket failing its
// outstanding operations. Hooks run in registration order.
func (s *Scheduler) AddShutdownHook(fn func(err error)) {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	s.shutdown = append(s.shutdown, fn)
}

func (s *Scheduler) runShutdownHooks(err error) {
	s.shutdownMu.Lock()
	hooks := s.shutdown
	s.shutdown = nil
	s.shutdownMu.Unlock()
	for _, h := range hooks {
		if h != nil {
			h(err)
		}
	}
}

func (s *Scheduler) drainFatal() {
	for {
		select {
		case <-s.fatalIn:
		default:
			return
		}
	}
}

func (s *Scheduler) disposeFromFatal(err error) { s.Dispose(err) }

// Dispose tears the Scheduler down: cancels the root Context (cascading to
// every descendant), runs shutdown hooks, and stops the run loop. Safe to
// call more than once; only the first call has effect (spec §4.D).
func (s *Scheduler) Dispose(err error) {
	if err == nil {
		err = ErrSchedulerDisposed
	}
	s.dc.Dispose(err)
}

// fatalHook wraps a CancelHook so a panic inside it is captured and routed to
// the fatal-errors channel instead of crashing the process (spec §4.C/§5:
// "Hooks must not throw; if one does, the runtime treats it as fatal").
func (s *Scheduler) fatalHook(hook CancelHook) CancelHook {
	return func(err error) {
		defer func() {
			if r := recover(); r != nil {
				select {
				case s.fatalIn <- fmt.Errorf("cancellation hook panicked: %v", r):
				default:
					go func() { s.fatalIn <- fmt.Errorf("cancellation hook panicked: %v", r) }()
				}
			}
		}()
		hook(err)
	}
}

// ---- ready-queue / run loop ----

func (s *Scheduler) enqueueReady(job *fiberJob) {
	s.readyMu.Lock()
	s.ready = append(s.ready, job)
	s.readyMu.Unlock()
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) popReady() *fiberJob {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	if len(s.ready) == 0 {
		return nil
	}
	job := s.ready[0]
	s.ready[0] = nil
	s.ready = s.ready[1:]
	return job
}

func (s *Scheduler) runLoop() {
	for {
		job := s.popReady()
		if job == nil {
			select {
			case <-s.wakeCh:
				continue
			case <-s.closeCh:
				return
			}
		}
		suspended, result, err := job.fn()
		if !suspended && job.onDone != nil {
			job.onDone(result, err)
		}
	}
}

// spawn starts entry on a freshly pooled Fiber. onDone runs on the run loop
// goroutine once entry returns (never while entry is still suspended).
func (s *Scheduler) spawn(entry FiberEntry, onDone func(result any, err error)) *Fiber {
	f := NewFiber(s.pool)
	s.enqueueReady(&fiberJob{
		fn:     func() (bool, any, error) { return f.Start(entry) },
		onDone: onDone,
	})
	return f
}

// wake resumes a suspended Fiber with value/err once its pending Op has
// settled. onDone runs if this resumption runs the fiber to completion.
func (s *Scheduler) wake(f *Fiber, value any, err error, onDone func(result any, err error)) {
	s.enqueueReady(&fiberJob{
		fn:     func() (bool, any, error) { return f.Resume(value, err) },
		onDone: onDone,
	})
}

// post schedules fn to run on the run loop goroutine, preserving the
// single-threaded guarantee for callbacks that aren't themselves fiber turns
// (e.g. a Deferred settling synchronously from outside any fiber).
func (s *Scheduler) post(fn func()) {
	s.enqueueReady(&fiberJob{fn: func() (bool, any, error) { fn(); return false, nil, nil }})
}

// ---- keepalive ----

// enterKeepalive accounts for one more non-background Task/Fiber the
// Scheduler must stay alive for (spec §4.D keepalive discipline).
func (s *Scheduler) enterKeepalive() {
	s.keepaliveMu.Lock()
	s.keepalive++
	s.keepaliveMu.Unlock()
}

func (s *Scheduler) exitKeepalive() {
	s.keepaliveMu.Lock()
	s.keepalive--
	idle := s.keepalive <= 0
	s.keepaliveMu.Unlock()
	if idle {
		select {
		case s.idleCh <- struct{}{}:
		default:
		}
	}
}

// Run spawns main as a Task under the root Context and blocks the calling
// goroutine until it settles (spec §4.D `run(main)`: the scheduler drives
// fiber turns until its one entry point completes), then Disposes the
// Scheduler so every resource it owns is torn down before Run returns.
// Intended to be called once, from whichever goroutine owns this Scheduler.
func (s *Scheduler) Run(main func(self *Task[any]) (any, error)) (any, error) {
	task := Create[any](s.root, s, main)
	result, err := task.Wait()
	s.Dispose(nil)
	return result, err
}

// CallNowait invokes fn on the run loop goroutine (spec §4.D `call_nowait`):
// the entry point host callbacks (I/O completions, timers) use to re-enter
// the Scheduler's single-threaded turn sequence from outside any fiber. If
// fn panics, the panic is recovered and routed to Fatal exactly like a
// panicking cancel hook (spec §7: host callbacks "catch and route errors...
// or report them as fatal").
func (s *Scheduler) CallNowait(fn func()) {
	s.post(func() {
		defer func() {
			if r := recover(); r != nil {
				select {
				case s.fatalIn <- fmt.Errorf("host callback panicked: %v", r):
				default:
					go func() { s.fatalIn <- fmt.Errorf("host callback panicked: %v", r) }()
				}
			}
		}()
		fn()
	})
}

// Idle returns a channel that receives once the Scheduler's keepalive count
// reaches zero, i.e. every non-background Task has settled. If the count is
// already zero when Idle is called, the returned channel is ready at once.
// Callers typically select on it alongside Fatal() to decide when to Dispose.
func (s *Scheduler) Idle() <-chan struct{} {
	s.keepaliveMu.Lock()
	defer s.keepaliveMu.Unlock()
	if s.keepalive <= 0 {
		ready := make(chan struct{})
		close(ready)
		return ready
	}
	return s.idleCh
}

// recordTaskStart reports a freshly created Task to the configured metrics
// Provider (spec §4.D observability: task throughput/concurrency).
func (s *Scheduler) recordTaskStart() {
	s.tasksStarted.Add(1)
	s.tasksActive.Add(1)
}

// recordTaskDone reports a settled Task's lifetime and releases its slot in
// the active-task gauge.
func (s *Scheduler) recordTaskDone(lifetime time.Duration) {
	s.tasksActive.Add(-1)
	s.taskDuration.Record(lifetime.Seconds())
}
