package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelIteratorValidBeforeRewindIsFalse(t *testing.T) {
	ch := NewChannel[int](1)
	it := ch.Iterator()

	ok, err := it.Valid()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChannelIteratorRewindFetchesFirstValue(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	ch := NewChannel[int](1)
	require.NoError(t, ch.Send(nil, 5))

	task := Create(nil, sched, func(self *Task[int]) (int, error) {
		it := ch.Iterator()
		if err := it.Rewind(self); err != nil {
			return 0, err
		}
		ok, err := it.Valid()
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, errors.New("expected Valid after Rewind fetched a value")
		}
		return it.Current(), nil
	})

	v, err := task.Wait()
	require.NoError(t, err)
	require.Equal(t, 5, v)
}

func TestChannelIteratorRewindIsNoopOnceStarted(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	ch := NewChannel[int](2)
	require.NoError(t, ch.Send(nil, 1))
	require.NoError(t, ch.Send(nil, 2))

	task := Create(nil, sched, func(self *Task[[]int]) ([]int, error) {
		it := ch.Iterator()
		require.NoError(t, it.Rewind(self))
		first := it.Current()

		// A second Rewind after iteration has started must not re-fetch.
		require.NoError(t, it.Rewind(self))
		require.Equal(t, first, it.Current())

		ok, err := it.Next(self)
		if err != nil || !ok {
			return nil, err
		}
		return []int{first, it.Current()}, nil
	})

	got, err := task.Wait()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, got)
}

func TestChannelIteratorRewindSkipsFetchOnAlreadyClosedChannel(t *testing.T) {
	ch := NewChannel[int](1)
	ch.Close(nil)

	it := ch.Iterator()
	require.NoError(t, it.Rewind(nil))

	ok, err := it.Valid()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChannelIteratorValidRaisesAfterCloseWithError(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	ch := NewChannel[int](0)
	boom := errors.New("boom")

	var it *ChannelIterator[int]
	task := Create(nil, sched, func(self *Task[struct{}]) (struct{}, error) {
		it = ch.Iterator()
		_, err := it.Next(self)
		return struct{}{}, err
	})

	for i := 0; i < 100 && ch.receivers.Len() == 0; i++ {
		sched.post(func() {})
	}
	ch.Close(boom)

	_, err := task.Wait()
	require.Error(t, err)

	ok, validErr := it.Valid()
	require.False(t, ok)
	require.ErrorIs(t, validErr, boom)
}
