package asyncrt

import "sync"

// awaitableMarker is implemented by every Awaitable (Task, Deferred) so
// Deferred.Resolve can reject being handed another Awaitable as its value
// (spec §9 Open Questions: Resolve never flattens — await it first).
type awaitableMarker interface{ asyncrtAwaitable() }

// Deferred is a promise-style settleable value (spec component F). Unlike a
// Task it has no fiber of its own: something else — a callback, another
// goroutine, an I/O completion — calls Resolve or Fail on it directly.
type Deferred[R any] struct {
	mu      sync.Mutex
	status  opStatus
	result  R
	err     error
	waiters opQueue
	detach  func()
}

// NewDeferred returns a Pending Deferred with no cancel hook. Equivalent to
// New(ctx, nil).
func NewDeferred[R any]() *Deferred[R] { return &Deferred[R]{status: opPending} }

// New returns a Pending Deferred and, if cancel is non-nil, registers it on
// ctx's nearest cancel source (spec §4.F `new(cancel_fn?)`): cancel fires
// synchronously with the cancellation cause if ctx is already cancelled,
// otherwise it fires at most once when ctx is cancelled while the Deferred
// is still Pending. The hook is detached as soon as the Deferred settles by
// any means, so a late cancellation never fires against a settled value.
func New[R any](ctx *Context, cancel func(d *Deferred[R], err error)) *Deferred[R] {
	d := &Deferred[R]{status: opPending}
	if cancel == nil || ctx == nil {
		return d
	}
	d.detach = ctx.Register(func(err error) { cancel(d, err) })
	return d
}

// Value returns a Deferred pre-settled as Resolved with v (spec §4.F
// `static value(v)`).
func Value[R any](v R) *Deferred[R] {
	return &Deferred[R]{status: opResolved, result: v}
}

// Err returns a Deferred pre-settled as Failed with e (spec §4.F
// `static error(e)`).
func Err[R any](e error) *Deferred[R] {
	if e == nil {
		e = ErrCancelled
	}
	return &Deferred[R]{status: opFailed, err: e}
}

func (d *Deferred[R]) asyncrtAwaitable() {}

// Resolve settles d with v. Returns ErrResolveWithAwaitable if v is itself an
// Awaitable (Task or Deferred) — await it first and resolve with its result
// instead. A no-op if d has already settled.
func (d *Deferred[R]) Resolve(v R) error {
	if _, ok := any(v).(awaitableMarker); ok {
		return ErrResolveWithAwaitable
	}
	d.mu.Lock()
	if d.status != opPending {
		d.mu.Unlock()
		return nil
	}
	d.status = opResolved
	d.result = v
	waiters := d.waiters
	d.waiters = opQueue{}
	detach := d.detach
	d.mu.Unlock()

	if detach != nil {
		detach()
	}
	for w := waiters.Dequeue(); w != nil; w = waiters.Dequeue() {
		w.Resolve(v)
	}
	return nil
}

// Fail settles d with err (ErrCancelled if err is nil). A no-op if d has
// already settled.
func (d *Deferred[R]) Fail(err error) {
	if err == nil {
		err = ErrCancelled
	}
	d.mu.Lock()
	if d.status != opPending {
		d.mu.Unlock()
		return
	}
	d.status = opFailed
	d.err = err
	waiters := d.waiters
	d.waiters = opQueue{}
	detach := d.detach
	d.mu.Unlock()

	if detach != nil {
		detach()
	}
	for w := waiters.Dequeue(); w != nil; w = waiters.Dequeue() {
		w.Fail(err)
	}
}

// Dispose fails d with ErrDisposedBeforeSettled if it is still Pending (spec
// §4.F Disposal: an owner torn down before its Deferred settled).
func (d *Deferred[R]) Dispose() { d.Fail(ErrDisposedBeforeSettled) }

// Settled reports d's current value/error without suspending; ok is false
// while d is still Pending.
func (d *Deferred[R]) Settled() (result R, err error, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status == opPending {
		return result, nil, false
	}
	return d.result, d.err, true
}

// addWaiter is the continuation side AwaitDeferred and the Combine/Transform
// combinators suspend on: if d has already settled, op resolves/fails
// immediately; otherwise it is parked until Resolve or Fail runs.
func (d *Deferred[R]) addWaiter(op *Op) {
	d.mu.Lock()
	switch d.status {
	case opResolved:
		result := d.result
		d.mu.Unlock()
		op.Resolve(result)
	case opFailed:
		err := d.err
		d.mu.Unlock()
		op.Fail(err)
	default:
		d.waiters.Enqueue(op)
		d.mu.Unlock()
	}
}

// AwaitDeferred suspends self's fiber until d settles, returning d's result
// cast to R2.
func AwaitDeferred[R, R2 any](self *Task[R], d *Deferred[R2]) (R2, error) {
	v, err := self.Await(func(op *Op) { d.addWaiter(op) })
	if err != nil {
		var zero R2
		return zero, err
	}
	return v.(R2), nil
}
