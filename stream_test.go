package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapStreamEmitsAllResultsAndCloses(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	in := make(chan int, 4)
	for i := 1; i <= 4; i++ {
		in <- i
	}
	close(in)

	out, errs := MapStream[int, int](nil, sched, in, func(t *Task[int], item int) (int, error) {
		return item * 10, nil
	}, false)

	sum := 0
	count := 0
	for v := range out {
		sum += v
		count++
	}
	for range errs {
		t.Fatal("unexpected error on errors channel")
	}
	require.Equal(t, 4, count)
	require.Equal(t, 100, sum)
}

func TestMapStreamPreservesOrderWhenRequested(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	in := make(chan int, 5)
	for i := 0; i < 5; i++ {
		in <- i
	}
	close(in)

	out, errs := MapStream[int, int](nil, sched, in, func(t *Task[int], item int) (int, error) {
		return item, nil
	}, true)

	var got []int
	for v := range out {
		got = append(got, v)
	}
	for range errs {
		t.Fatal("unexpected error on errors channel")
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestMapStreamTagsFailingItemsOnErrorsChannel(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	boom := errors.New("odd numbers fail")
	in := make(chan int, 3)
	in <- 1
	in <- 2
	in <- 3
	close(in)

	out, errs := MapStream[int, int](nil, sched, in, func(t *Task[int], item int) (int, error) {
		if item%2 == 1 {
			return 0, boom
		}
		return item, nil
	}, false)

	var results []int
	var errCount int
	outDone, errsDone := false, false
	for !outDone || !errsDone {
		select {
		case v, ok := <-out:
			if !ok {
				outDone = true
				continue
			}
			results = append(results, v)
		case e, ok := <-errs:
			if !ok {
				errsDone = true
				continue
			}
			require.ErrorIs(t, e, boom)
			errCount++
		}
	}
	require.Equal(t, []int{2}, results)
	require.Equal(t, 2, errCount)
}

func TestForEachStreamDrainsResultsAndReportsErrors(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	boom := errors.New("bad item")
	in := make(chan int, 3)
	in <- 1
	in <- 2
	in <- 3
	close(in)

	errs := ForEachStream[int](nil, sched, in, func(t *Task[struct{}], item int) error {
		if item == 2 {
			return boom
		}
		return nil
	})

	var count int
	for e := range errs {
		require.ErrorIs(t, e, boom)
		count++
	}
	require.Equal(t, 1, count)
}
