package asyncrt

import (
	"errors"
	"sync"
)

// ChannelIterator is a stateful cursor over a Channel's values (spec
// component G). Grounded on original_source/src/channel.c's
// fetch_next_entry/ChannelIterator: Next re-enters channel.Receive under a
// reentrancy guard (ASYNC_CHANNEL_ITERATOR_FLAG_FETCHING there,
// ErrIteratorBusy here), and a clean channel close ends iteration instead of
// surfacing as an error.
type ChannelIterator[T any] struct {
	ch *Channel[T]

	mu       sync.Mutex
	fetching bool
	started  bool
	current  T
	index    uint64
	done     bool
	err      error
}

// Iterator returns a fresh ChannelIterator positioned before the first
// value.
func (c *Channel[T]) Iterator() *ChannelIterator[T] { return &ChannelIterator[T]{ch: c} }

// Rewind performs the iterator's first fetch if iteration hasn't started yet
// and the channel isn't already closed (spec §6 `rewind()`, grounded on
// original_source/src/channel.c's ChannelIterator::rewind — it only calls
// fetch_next_entry when the cursor hasn't moved). A second Rewind call, or
// one on an iterator that has already fetched at least once, is a no-op:
// re-fetching afterward is Next's job.
func (it *ChannelIterator[T]) Rewind(self suspender) error {
	it.mu.Lock()
	if it.started {
		it.mu.Unlock()
		return nil
	}
	it.mu.Unlock()

	if _, closed := it.ch.Closed(); closed {
		return nil
	}
	_, err := it.Next(self)
	return err
}

// Valid reports whether Current holds a value from the most recent
// successful fetch. Once Next (or Rewind) has observed the channel closed
// with a cause, Valid keeps returning that error instead of silently
// reporting false (spec §8: "Iterator after close-with-error: valid()
// raises" — err standing in for the spec's exception).
func (it *ChannelIterator[T]) Valid() (bool, error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.err != nil {
		return false, it.err
	}
	return it.started && !it.done, nil
}

// Next suspends self's Task until the next value arrives, the channel
// closes, or another Next call on the same iterator is already in flight
// (ErrIteratorBusy). ok is false once the channel has closed cleanly; a
// non-nil err reports a real failure (the channel closed with a cause, or
// the calling Context was cancelled) and is then remembered for Valid.
func (it *ChannelIterator[T]) Next(self suspender) (ok bool, err error) {
	it.mu.Lock()
	if it.done {
		it.mu.Unlock()
		return false, nil
	}
	if it.fetching {
		it.mu.Unlock()
		return false, ErrIteratorBusy
	}
	it.fetching = true
	it.started = true
	it.mu.Unlock()

	v, recvErr := it.ch.Receive(self)

	it.mu.Lock()
	defer it.mu.Unlock()
	it.fetching = false

	if recvErr != nil {
		var closedErr *ChannelClosedError
		if errors.As(recvErr, &closedErr) && closedErr.Cause == nil {
			it.done = true
			return false, nil
		}
		it.done = true
		it.err = recvErr
		return false, recvErr
	}

	it.current = v
	it.index++
	return true, nil
}

// Current returns the value Next most recently fetched.
func (it *ChannelIterator[T]) Current() T {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.current
}

// Key returns how many values Next has successfully fetched so far.
func (it *ChannelIterator[T]) Key() uint64 {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.index
}
