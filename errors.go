package asyncrt

import "errors"

const Namespace = "asyncrt"

var (
	// ErrCancelled is the default cause used when CancelFunc is called with
	// a nil error. It is also what an awaiting Task sees when its Context is
	// cancelled while suspended (spec §4.E Cancellation).
	ErrCancelled = errors.New(Namespace + ": cancelled")

	// ErrSchedulerDisposed is the cause attached to operations failed during
	// Scheduler.Dispose when the caller supplied no explicit error (spec
	// §4.D Dispose).
	ErrSchedulerDisposed = errors.New(Namespace + ": scheduler disposed")

	// ErrDisposedBeforeSettled is raised when a Deferred's owner is torn
	// down while the Deferred is still Pending (spec §4.F Disposal).
	ErrDisposedBeforeSettled = errors.New(Namespace + ": awaitable disposed before resolved")

	// ErrResolveWithAwaitable is returned by Deferred.Resolve when called
	// with a value that is itself an Awaitable — the reference implementation
	// rejects this rather than flattening it (spec §9 Open Questions).
	ErrResolveWithAwaitable = errors.New(Namespace + ": cannot resolve a deferred with an awaitable value; await it first")

	// ErrIteratorBusy guards ChannelIterator.Next against reentrant calls
	// while a fetch is already in flight (spec §3 Channel
	// Iterator "fetching" reentrancy guard).
	ErrIteratorBusy = errors.New(Namespace + ": channel iterator is already awaiting its next value")

	// ErrSelectEmpty is returned by Select when given an empty channel map.
	ErrSelectEmpty = errors.New(Namespace + ": select requires at least one channel")

	// ErrPendingRead signals an illegal concurrent Read on the same socket
	// (spec §4.H, §7).
	ErrPendingRead = errors.New(Namespace + ": a read is already pending on this socket")

	// ErrPendingWrite is the write-side analogue of ErrPendingRead.
	ErrPendingWrite = errors.New(Namespace + ": a write is already pending on this socket")

	// ErrStreamClosed signals post-close I/O on a socket (spec §7).
	ErrStreamClosed = errors.New(Namespace + ": stream is closed")
)

// ChannelClosedError is raised on send-after-close and on receive when the
// close carried an error (spec §7). Cause is always the close reason, or nil
// if the channel closed cleanly but the receiver observed it via Await
// failing rather than iterator end-of-stream.
type ChannelClosedError struct {
	Cause error
}

func (e *ChannelClosedError) Error() string {
	if e.Cause == nil {
		return Namespace + ": channel is closed"
	}
	return Namespace + ": channel is closed: " + e.Cause.Error()
}

func (e *ChannelClosedError) Unwrap() error { return e.Cause }

// SocketError wraps an address/bind/accept/connect/TLS-verification failure
// with the operation that produced it (spec §7).
type SocketError struct {
	Op   string // "dial", "listen", "accept", "verify", ...
	Addr string
	Err  error
}

func (e *SocketError) Error() string {
	if e.Addr == "" {
		return Namespace + ": socket " + e.Op + ": " + e.Err.Error()
	}
	return Namespace + ": socket " + e.Op + " " + e.Addr + ": " + e.Err.Error()
}

func (e *SocketError) Unwrap() error { return e.Err }

// StreamError wraps an underlying I/O error from a socket read or write.
type StreamError struct {
	Op  string // "read", "write"
	Err error
}

func (e *StreamError) Error() string { return Namespace + ": stream " + e.Op + ": " + e.Err.Error() }
func (e *StreamError) Unwrap() error { return e.Err }
