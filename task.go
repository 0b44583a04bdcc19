package asyncrt

import (
	"sync"
	"sync/atomic"
	"time"
)

var taskIDSeq uint64

// Task is a single fiber-backed unit of cooperative work (spec component E,
// "concurrent_task" in original_source/include/task.h). Create spawns it
// immediately onto the owning Scheduler; Await is the sole primitive by
// which its body suspends itself on some other awaitable — a Deferred, a
// Channel send/receive, a socket read/write, or another Task.
type Task[R any] struct {
	id    uint64
	sched *Scheduler
	ctx   *Context
	fiber *Fiber

	background bool
	createdAt  time.Time

	mu      sync.Mutex
	status  opStatus
	result  R
	err     error
	waiters opQueue // continuations: other Tasks' Await ops parked on this Task finishing
}

// Create spawns a Task running fn(t) on sched, under ctx (sched.Root() if
// ctx is nil). If ctx is already cancelled, fn never runs and the Task
// settles failed immediately.
//
// A Task running under a background Context (see WithBackground) never
// counts toward its Scheduler's keepalive total.
func Create[R any](ctx *Context, sched *Scheduler, fn func(t *Task[R]) (R, error)) *Task[R] {
	if sched == nil {
		panic("asyncrt: Create requires a non-nil Scheduler")
	}
	if ctx == nil {
		ctx = sched.Root()
	}

	t := &Task[R]{
		id:         atomic.AddUint64(&taskIDSeq, 1),
		sched:      sched,
		ctx:        ctx,
		status:     opPending,
		background: ctx.Background(),
		createdAt:  time.Now(),
	}

	if cause, cancelled := ctx.Cancelled(); cancelled {
		t.status = opFailed
		t.err = newTaskTaggedError(cause, t.id, true, -1)
		return t
	}

	sched.recordTaskStart()
	if !t.background {
		sched.enterKeepalive()
	}

	entry := func(_ *Fiber) (any, error) { return fn(t) }

	t.fiber = NewFiber(sched.pool)
	sched.enqueueReady(&fiberJob{
		fn:     func() (bool, any, error) { return t.fiber.Start(entry) },
		onDone: t.onFiberDone,
	})

	return t
}

func (t *Task[R]) asyncrtAwaitable() {}

// ID returns the Task's monotonic identity, usable to correlate a
// TaskMetaError back to the Task that produced it.
func (t *Task[R]) ID() uint64 { return t.id }

// Scheduler returns the Scheduler that owns t. Go has no goroutine-local
// storage, so there is no package-level CurrentScheduler() lookup (spec
// §4.D `current()`) — a fiber body already carries its own *Task[R] as
// self, and Scheduler() is the explicit substitute, the same idiom
// cancelctx.go's Context threading uses in place of an ambient "current
// Context".
func (t *Task[R]) Scheduler() *Scheduler { return t.sched }

// Done reports whether the Task has settled (resolved or failed).
func (t *Task[R]) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == opResolved || t.status == opFailed
}

// Result returns the Task's settled value/error. Safe to call only after
// Done reports true; callers that may race with settlement should await the
// Task instead (via AwaitTask, from inside another Task's body).
func (t *Task[R]) Result() (R, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// Wait blocks the calling goroutine — which need not be, and usually isn't,
// running inside any fiber — until the Task settles, then returns its
// result. Batch helpers (All, ForEach, Map) use this to collect Task
// results from ordinary synchronous code.
func (t *Task[R]) Wait() (R, error) {
	done := make(chan struct{})
	op := NewOp()
	op.cb = func(*Op, any) { close(done) }
	t.addWaiter(op)
	<-done
	return t.Result()
}

// Await suspends the calling Task's own fiber until an Op armed by enqueue
// settles. enqueue is handed a freshly prepared Op — with its settlement
// callback and cancellation wiring already installed — and is responsible
// for placing it wherever it needs to wait (a Channel's senders/receivers
// queue, a Deferred's operations list, a goroutine running a socket call, ...).
// This is the sole suspension primitive every other awaitable is built on.
func (t *Task[R]) Await(enqueue func(op *Op)) (any, error) {
	if cause, cancelled := t.ctx.Cancelled(); cancelled {
		return nil, cause
	}

	op := NewOp()
	var detachCancel func()
	op.cb = func(op *Op, _ any) {
		if detachCancel != nil {
			detachCancel()
		}
		v, e := op.Result()
		t.sched.wake(t.fiber, v, e, t.onFiberDone)
	}
	detachCancel = t.ctx.Register(func(err error) {
		if op.Status() == opPending || op.Status() == opRunning {
			op.detachSelf()
			op.Fail(err)
		}
	})

	enqueue(op)
	return t.fiber.Yield()
}

// addWaiter is the continuation side of AwaitTask: if t has already settled,
// op resolves/fails immediately; otherwise it is parked on t.waiters until
// onFiberDone runs.
func (t *Task[R]) addWaiter(op *Op) {
	t.mu.Lock()
	switch t.status {
	case opResolved:
		result := t.result
		t.mu.Unlock()
		op.Resolve(result)
		return
	case opFailed:
		err := t.err
		t.mu.Unlock()
		op.Fail(err)
		return
	default:
		t.waiters.Enqueue(op)
		t.mu.Unlock()
	}
}

// AwaitTask suspends the calling Task self until other settles, returning
// other's result cast to R2. Cross-generic (self and other may carry
// different result types), so it is a free function rather than a method.
func AwaitTask[R, R2 any](self *Task[R], other *Task[R2]) (R2, error) {
	v, err := self.Await(func(op *Op) { other.addWaiter(op) })
	if err != nil {
		var zero R2
		return zero, err
	}
	return v.(R2), nil
}

// onFiberDone runs on the Scheduler's run loop goroutine once the Task's
// fiber body returns (success or failure) — never while it is merely
// suspended in Await. It finalizes status, releases the keepalive slot, and
// notifies every continuation parked in waiters, in FIFO order.
func (t *Task[R]) onFiberDone(result any, err error) {
	t.mu.Lock()
	if t.status == opResolved || t.status == opFailed {
		t.mu.Unlock()
		return
	}
	if err != nil {
		t.status = opFailed
		t.err = newTaskTaggedError(err, t.id, true, -1)
	} else {
		t.status = opResolved
		if r, ok := result.(R); ok {
			t.result = r
		}
	}
	waiters := t.waiters
	t.waiters = opQueue{}
	settledErr := t.err
	settledResult := t.result
	t.mu.Unlock()

	t.sched.recordTaskDone(time.Since(t.createdAt))
	if !t.background {
		t.sched.exitKeepalive()
	}

	for w := waiters.Dequeue(); w != nil; w = waiters.Dequeue() {
		if settledErr != nil {
			w.Fail(settledErr)
		} else {
			w.Resolve(settledResult)
		}
	}
}
