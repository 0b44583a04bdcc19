package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeferredResolveWakesWaiters(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	d := NewDeferred[int]()

	task := Create(nil, sched, func(self *Task[int]) (int, error) {
		return AwaitDeferred(self, d)
	})

	require.NoError(t, d.Resolve(9))

	v, err := task.Wait()
	require.NoError(t, err)
	require.Equal(t, 9, v)
}

func TestDeferredResolveRejectsAwaitableValue(t *testing.T) {
	inner := NewDeferred[int]()
	outer := NewDeferred[*Deferred[int]]()

	require.ErrorIs(t, outer.Resolve(inner), ErrResolveWithAwaitable)
}

func TestDeferredSettleIsIdempotent(t *testing.T) {
	d := NewDeferred[int]()
	require.NoError(t, d.Resolve(1))
	require.NoError(t, d.Resolve(2))
	d.Fail(errors.New("too late"))

	v, err, ok := d.Settled()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestDeferredDisposeBeforeSettled(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	d := NewDeferred[int]()
	task := Create(nil, sched, func(self *Task[int]) (int, error) {
		return AwaitDeferred(self, d)
	})

	d.Dispose()

	_, err := task.Wait()
	require.ErrorIs(t, err, ErrDisposedBeforeSettled)
}

func TestDeferredValueIsPreSettledResolved(t *testing.T) {
	d := Value(7)
	v, err, ok := d.Settled()
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestDeferredErrIsPreSettledFailed(t *testing.T) {
	boom := errors.New("boom")
	d := Err[int](boom)
	_, err, ok := d.Settled()
	require.True(t, ok)
	require.ErrorIs(t, err, boom)
}

func TestDeferredNewFiresCancelHookOnCancellation(t *testing.T) {
	ctx, cancel := WithCancel(nil)

	var gotErr error
	d := New[int](ctx, func(d *Deferred[int], err error) {
		gotErr = err
		d.Fail(err)
	})

	boom := errors.New("stop")
	cancel(boom)

	require.ErrorIs(t, gotErr, boom)
	_, err, ok := d.Settled()
	require.True(t, ok)
	require.ErrorIs(t, err, boom)
}

func TestDeferredNewFiresCancelHookImmediatelyIfAlreadyCancelled(t *testing.T) {
	ctx, cancel := WithCancel(nil)
	boom := errors.New("already gone")
	cancel(boom)

	var gotErr error
	New[int](ctx, func(d *Deferred[int], err error) { gotErr = err })

	require.ErrorIs(t, gotErr, boom)
}

func TestDeferredNewDetachesCancelHookOnceSettled(t *testing.T) {
	ctx, cancel := WithCancel(nil)

	var hookCalls int
	d := New[int](ctx, func(d *Deferred[int], err error) { hookCalls++ })
	require.NoError(t, d.Resolve(1))

	cancel(errors.New("too late"))
	require.Equal(t, 0, hookCalls, "cancel hook must be detached once the Deferred has already settled")
}
