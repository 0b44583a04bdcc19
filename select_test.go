package asyncrt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectReturnsSoleReadyChannel(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	a := NewChannel[int](1)
	b := NewChannel[int](1)
	require.NoError(t, a.Send(nil, 7))

	task := Create(nil, sched, func(self *Task[SelectResult[int]]) (SelectResult[int], error) {
		return Select[int](self, []*Channel[int]{a, b}, true), nil
	})

	res, err := task.Wait()
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.True(t, res.Ok)
	require.Equal(t, 0, res.Index)
	require.Equal(t, 7, res.Value)
	require.Zero(t, b.receivers.Len(), "losing channel b should have no parked receivers")
}

func TestSelectTakesOneValueWhenBothReady(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	a := NewChannel[int](1)
	b := NewChannel[int](1)
	require.NoError(t, a.Send(nil, 1))
	require.NoError(t, b.Send(nil, 2))

	task := Create(nil, sched, func(self *Task[SelectResult[int]]) (SelectResult[int], error) {
		return Select[int](self, []*Channel[int]{a, b}, true), nil
	})

	res, err := task.Wait()
	require.NoError(t, err)
	require.NoError(t, res.Err)

	// Exactly one of the two channels should have been drained; the other
	// still holds its buffered value since Select returns from its scan on
	// the first ready channel it finds.
	drained := 0
	if a.Len() == 0 {
		drained++
	}
	if b.Len() == 0 {
		drained++
	}
	require.Equal(t, 1, drained)
}

func TestSelectEmptyChannelSliceFails(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	task := Create(nil, sched, func(self *Task[SelectResult[int]]) (SelectResult[int], error) {
		return Select[int](self, nil, true), nil
	})

	res, err := task.Wait()
	require.NoError(t, err)
	require.ErrorIs(t, res.Err, ErrSelectEmpty)
	require.False(t, res.Ok)
}

func TestSelectNonBlockingReturnsExhaustedWhenNothingReady(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	a := NewChannel[int](0)
	b := NewChannel[int](0)

	task := Create(nil, sched, func(self *Task[SelectResult[int]]) (SelectResult[int], error) {
		return Select[int](self, []*Channel[int]{a, b}, false), nil
	})

	res, err := task.Wait()
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.False(t, res.Ok)
	require.Zero(t, res.Index)
	require.Zero(t, res.Value)
}

func TestSelectBlockingReturnsExhaustedWhenAllChannelsClosed(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	a := NewChannel[int](0)
	b := NewChannel[int](0)
	a.Close(nil)
	b.Close(nil)

	task := Create(nil, sched, func(self *Task[SelectResult[int]]) (SelectResult[int], error) {
		return Select[int](self, []*Channel[int]{a, b}, true), nil
	})

	res, err := task.Wait()
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.False(t, res.Ok)
}

func TestSelectBlockingSkipsChannelThatClosesWhileWaiting(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	a := NewChannel[int](0)
	b := NewChannel[int](0)

	waiter := Create(nil, sched, func(self *Task[SelectResult[int]]) (SelectResult[int], error) {
		return Select[int](self, []*Channel[int]{a, b}, true), nil
	})

	closer := Create(nil, sched, func(self *Task[struct{}]) (struct{}, error) {
		a.Close(nil)
		return struct{}{}, b.Send(self, 9)
	})

	res, err := waiter.Wait()
	require.NoError(t, err)
	require.True(t, res.Ok)
	require.Equal(t, 1, res.Index)
	require.Equal(t, 9, res.Value)

	_, err = closer.Wait()
	require.NoError(t, err)
}

func TestSelectWaitsUntilAChannelBecomesReady(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	a := NewChannel[int](0)
	b := NewChannel[int](0)

	waiter := Create(nil, sched, func(self *Task[SelectResult[int]]) (SelectResult[int], error) {
		return Select[int](self, []*Channel[int]{a, b}, true), nil
	})

	sender := Create(nil, sched, func(self *Task[struct{}]) (struct{}, error) {
		return struct{}{}, b.Send(self, 5)
	})

	res, err := waiter.Wait()
	require.NoError(t, err)
	require.True(t, res.Ok)
	require.Equal(t, 1, res.Index)
	require.Equal(t, 5, res.Value)

	_, err = sender.Wait()
	require.NoError(t, err)
}
