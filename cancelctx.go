package asyncrt

import (
	"context"
	"sync"
)

// CancelHook is invoked, at most once, when the Context's cancel source
// fires. Hooks must not block and must not panic — spec §4.C and §5 treat a
// panicking hook as fatal to the Scheduler that owns it.
type CancelHook func(err error)

// CancelFunc cancels the Context it was returned alongside, with err as the
// cause. Calling it more than once after the first is a no-op.
type CancelFunc func(err error)

// cancelSource is the node a context family shares when WithCancel creates a
// new cancellable scope. Once fired, err is set and every hook has run
// exactly once, in registration order; any hook attached afterward fires
// synchronously and immediately (spec §3 Cancellation Context invariant).
type cancelSource struct {
	mu    sync.Mutex
	err   error
	hooks []CancelHook
}

func (c *cancelSource) cancelled() (error, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err, c.err != nil
}

func (c *cancelSource) register(hook CancelHook) (detach func()) {
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		hook(err)
		return func() {}
	}
	idx := len(c.hooks)
	c.hooks = append(c.hooks, hook)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if idx < len(c.hooks) {
			c.hooks[idx] = nil
		}
	}
}

func (c *cancelSource) fire(err error) {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return
	}
	c.err = err
	hooks := c.hooks
	c.mu.Unlock()

	for _, h := range hooks {
		if h != nil {
			h(err)
		}
	}
}

// Context is asyncrt's cancellation/keepalive scope. It wraps a
// context.Context so it composes with standard-library APIs (deadlines,
// values) while adding the cancel-source/background-flag tree spec §3 and
// §4.C describe. There is no ambient/implicit "current" lookup: Go has no
// goroutine-local storage, so a Context is threaded explicitly through
// Task.Create and Task.Await, the idiomatic substitute (see DESIGN.md).
type Context struct {
	std        context.Context
	parent     *Context
	background bool
	source     *cancelSource // nil if this scope has no cancel source of its own
}

// NewRootContext wraps std as the root of a Context tree.
func NewRootContext(std context.Context) *Context {
	if std == nil {
		std = context.Background()
	}
	return &Context{std: std}
}

// Std returns the underlying standard-library context.
func (c *Context) Std() context.Context { return c.std }

// Background reports whether this Context (or an ancestor) is background,
// i.e. a Task running in it must not keep its Scheduler alive (spec §4.D
// keepalive discipline).
func (c *Context) Background() bool { return c.background }

// WithCancel creates a child Context with its own cancel source. Calling the
// returned CancelFunc cancels this child and, transitively, every
// descendant Context created from it (spec §4.C propagation).
func WithCancel(parent *Context) (*Context, CancelFunc) {
	if parent == nil {
		parent = NewRootContext(nil)
	}
	std, stdCancel := context.WithCancel(parent.std)
	src := &cancelSource{}
	child := &Context{std: std, parent: parent, background: parent.background, source: src}

	// Propagate transitively: if an ancestor's cancel source fires first,
	// forward its error into this child's own source so every hook
	// registered on the child (or its descendants) still fires (spec §4.C).
	if parentSrc := parent.nearestSource(); parentSrc != nil {
		parentSrc.register(func(err error) { src.fire(err) })
	}

	cancel := func(err error) {
		if err == nil {
			err = ErrCancelled
		}
		src.fire(err)
		stdCancel()
	}
	return child, cancel
}

// WithBackground creates a child Context marked background: Tasks running in
// it (or any descendant) never count toward their Scheduler's keepalive.
func WithBackground(parent *Context) *Context {
	if parent == nil {
		parent = NewRootContext(nil)
	}
	return &Context{std: parent.std, parent: parent, background: true, source: parent.source}
}

// Run installs nothing ambient (see type doc) but exists for API parity with
// spec §4.C: it invokes f, giving callers a single place to thread ctx
// through panics/defers uniformly.
func Run(ctx *Context, f func(ctx *Context)) {
	f(ctx)
}

// Register enqueues hook on the nearest ancestor cancel source. If that
// source is already cancelled, hook fires synchronously and immediately.
// Register returns a detach function; Deferred and Task.Await call it once
// they settle so a hook never fires against a settled awaiter.
func (c *Context) Register(hook CancelHook) (detach func()) {
	src := c.nearestSource()
	if src == nil {
		return func() {}
	}
	return src.register(hook)
}

// Cancelled reports whether this Context's nearest ancestor cancel source
// has fired, and the cause if so.
func (c *Context) Cancelled() (error, bool) {
	src := c.nearestSource()
	if src == nil {
		return nil, false
	}
	return src.cancelled()
}

func (c *Context) nearestSource() *cancelSource {
	for cur := c; cur != nil; cur = cur.parent {
		if cur.source != nil {
			return cur.source
		}
	}
	return nil
}
