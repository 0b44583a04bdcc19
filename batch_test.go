package asyncrt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllReturnsResultsInInputOrder(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	fns := []func(*Task[int]) (int, error){
		func(*Task[int]) (int, error) { return 1, nil },
		func(*Task[int]) (int, error) { return 2, nil },
		func(*Task[int]) (int, error) { return 3, nil },
	}

	got, err := All[int](nil, sched, fns)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
}

func TestAllJoinsErrorsAndTagsFailingIndex(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	boom := errors.New("item 1 failed")
	fns := []func(*Task[int]) (int, error){
		func(*Task[int]) (int, error) { return 1, nil },
		func(*Task[int]) (int, error) { return 0, boom },
		func(*Task[int]) (int, error) { return 3, nil },
	}

	got, err := All[int](nil, sched, fns)
	require.ErrorIs(t, err, boom)

	idx, ok := ExtractTaskIndex(err)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	require.Equal(t, 1, got[0])
	require.Equal(t, 3, got[2])
}

func TestAllEmptyReturnsNil(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	got, err := All[int](nil, sched, nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestForEachRunsOverAllItemsConcurrently(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	items := []int{1, 2, 3, 4}
	seen := make(chan int, len(items))

	err := ForEach[int](nil, sched, items, func(t *Task[struct{}], item int) error {
		seen <- item
		return nil
	})
	require.NoError(t, err)
	close(seen)

	total := 0
	for v := range seen {
		total += v
	}
	require.Equal(t, 10, total)
}

func TestForEachPropagatesItemErrors(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	boom := errors.New("bad item")
	err := ForEach[int](nil, sched, []int{1, 2}, func(t *Task[struct{}], item int) error {
		if item == 2 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
}

func TestMapAppliesFnAndPreservesOrder(t *testing.T) {
	sched := NewScheduler()
	defer sched.Dispose(nil)

	items := []int{1, 2, 3}
	got, err := Map[int, int](nil, sched, items, func(t *Task[int], item int) (int, error) {
		return item * item, nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 9}, got)
}
