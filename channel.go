package asyncrt

import "sync"

// Channel is a CSP-style buffered channel (spec component G), grounded on
// original_source/src/channel.c's send/receive/close semantics: Send checks
// the closed state first, then hands off to a waiting receiver, then falls
// back to the buffer, and only then suspends the calling Task on a queued
// Op. Receive takes from the buffer first (refilling it from a waiting
// sender), then directly from a waiting sender, reports the close only once
// both are empty, and otherwise suspends.
type Channel[T any] struct {
	mu       sync.Mutex
	buf      []T
	capacity int

	senders   opQueue
	receivers opQueue

	closed   bool
	closeErr error
}

// NewChannel creates a Channel buffering up to capacity values before Send
// suspends the caller. capacity 0 behaves like an unbuffered channel: Send
// never buffers and only completes once a Receive takes the value.
func NewChannel[T any](capacity int) *Channel[T] {
	return &Channel[T]{capacity: capacity}
}

// Len reports how many buffered values are currently queued.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Cap reports the channel's buffer capacity.
func (c *Channel[T]) Cap() int { return c.capacity }

// Send delivers v without suspending when a receiver is waiting or the
// buffer has room (self is not used then and may be nil). Otherwise it
// suspends self's Task until v is accepted: handed to a receiver or
// dequeued from the senders wait-queue once free space appears. Returns a
// *ChannelClosedError if the channel is already closed.
func (c *Channel[T]) Send(self suspender, v T) error {
	c.mu.Lock()
	if c.closed {
		cause := c.closeErr
		c.mu.Unlock()
		return &ChannelClosedError{Cause: cause}
	}
	if recvOp := c.receivers.Dequeue(); recvOp != nil {
		recvOp.Resolve(v)
		c.mu.Unlock()
		return nil
	}
	if c.capacity > 0 && len(c.buf) < c.capacity {
		c.buf = append(c.buf, v)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	_, err := self.Await(func(op *Op) { c.enqueueSend(op, v) })
	return err
}

func (c *Channel[T]) enqueueSend(op *Op, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		op.Fail(&ChannelClosedError{Cause: c.closeErr})
		return
	}
	if recvOp := c.receivers.Dequeue(); recvOp != nil {
		recvOp.Resolve(v)
		op.Resolve(v)
		return
	}
	if c.capacity > 0 && len(c.buf) < c.capacity {
		c.buf = append(c.buf, v)
		op.Resolve(v)
		return
	}
	op.arg = v
	c.senders.Enqueue(op)
}

// Receive suspends self's Task until a value is available: pulled from the
// buffer, handed directly from a waiting sender, or (once one arrives)
// dequeued from the receivers wait-queue. If the channel is closed and
// drained, it returns a *ChannelClosedError (nil Cause for a clean close,
// the close cause otherwise).
func (c *Channel[T]) Receive(self suspender) (T, error) {
	v, err := self.Await(func(op *Op) { c.enqueueReceive(op) })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *Channel[T]) enqueueReceive(op *Op) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch v, state := c.fetchNoBlockLocked(); state {
	case fetchReady:
		op.Resolve(v)
	case fetchClosed:
		op.Fail(&ChannelClosedError{Cause: c.closeErr})
	default:
		c.receivers.Enqueue(op)
	}
}

// fetchState is fetch_noblock's three-way outcome (spec §4.G "Receive
// algorithm (fetch)").
type fetchState uint8

const (
	fetchEmpty fetchState = iota
	fetchReady
	fetchClosed
)

// fetchNoBlock is fetch_noblock (spec §4.G): a non-suspending probe used by
// Select's entry scan. It returns fetchReady with a value pulled from the
// buffer or handed directly from a waiting sender, fetchClosed if the
// channel is closed and has nothing left to deliver, or fetchEmpty if the
// channel is open but has nothing ready right now.
func (c *Channel[T]) fetchNoBlock() (T, fetchState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchNoBlockLocked()
}

func (c *Channel[T]) fetchNoBlockLocked() (T, fetchState) {
	var zero T
	if len(c.buf) > 0 {
		val := c.buf[0]
		c.buf = c.buf[1:]
		if senderOp := c.senders.Dequeue(); senderOp != nil {
			sv, _ := senderOp.arg.(T)
			c.buf = append(c.buf, sv)
			senderOp.Resolve(sv)
		}
		return val, fetchReady
	}
	if senderOp := c.senders.Dequeue(); senderOp != nil {
		sv, _ := senderOp.arg.(T)
		senderOp.Resolve(sv)
		return sv, fetchReady
	}
	if c.closed {
		return zero, fetchClosed
	}
	return zero, fetchEmpty
}

// Close closes the channel idempotently (spec §7, grounded on
// dispose_channel): every queued receiver is failed first, then every
// queued sender, both with a *ChannelClosedError carrying cause. A second
// Close call, with any cause, is a no-op.
func (c *Channel[T]) Close(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = cause
	receivers := c.receivers
	c.receivers = opQueue{}
	senders := c.senders
	c.senders = opQueue{}
	c.mu.Unlock()

	for r := receivers.Dequeue(); r != nil; r = receivers.Dequeue() {
		r.Fail(&ChannelClosedError{Cause: cause})
	}
	for s := senders.Dequeue(); s != nil; s = senders.Dequeue() {
		s.Fail(&ChannelClosedError{Cause: cause})
	}
}

// Closed reports whether Close has run, and its cause if so.
func (c *Channel[T]) Closed() (cause error, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr, c.closed
}
