package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelBufferedSendDoesNotBlock(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	ch := NewChannel[int](2)

	sender := Create(nil, sched, func(self *Task[struct{}]) (struct{}, error) {
		if err := ch.Send(self, 1); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, ch.Send(self, 2)
	})
	_, err := sender.Wait()
	require.NoError(t, err)
	require.Equal(t, 2, ch.Len())
}

func TestChannelCloseFailsParkedReceiverAndLaterSend(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	ch := NewChannel[int](0)
	cause := errors.New("shutting down")

	receiver := Create(nil, sched, func(self *Task[int]) (int, error) {
		return ch.Receive(self)
	})

	// Let the receiver park before closing.
	for i := 0; i < 100 && ch.receivers.Len() == 0; i++ {
		sched.post(func() {})
	}

	ch.Close(cause)

	_, err := receiver.Wait()
	var closedErr *ChannelClosedError
	require.ErrorAs(t, err, &closedErr)
	require.ErrorIs(t, closedErr, cause)

	require.Error(t, ch.Send(nil, 1), "Send after Close should fail immediately")
}

func TestChannelIteratorEndsCleanlyOnClose(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	ch := NewChannel[int](4)
	require.NoError(t, ch.Send(nil, 1))
	ch.Close(nil)

	collected := Create(nil, sched, func(self *Task[[]int]) ([]int, error) {
		it := ch.Iterator()
		var out []int
		for {
			ok, err := it.Next(self)
			if err != nil {
				return out, err
			}
			if !ok {
				return out, nil
			}
			out = append(out, it.Current())
		}
	})

	out, err := collected.Wait()
	require.NoError(t, err)
	require.Equal(t, []int{1}, out)
}

func TestChannelIteratorBusyGuard(t *testing.T) {
	ch := NewChannel[int](1)
	it := ch.Iterator()
	it.fetching = true

	_, err := it.Next(nil)
	require.ErrorIs(t, err, ErrIteratorBusy)
}
