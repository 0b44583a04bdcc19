package asyncrt

import "sync"

// MapStream consumes items from in, applies fn to each concurrently (one
// Task per item), and streams results out as they complete. The errors
// channel carries a TaskMetaError per failing item. Both channels close
// once in is closed/drained and every started Task has settled.
//
// By default results are emitted in completion order; pass preserveOrder
// to emit them in the original input order instead (buffering early
// arrivals behind a still-pending earlier item, via orderedCollector).
//
// Adapted from the teacher's MapStream/RunStream: a forwarder goroutine
// reads from in, starts work, and waits for every started unit to finish
// before closing the output channels — generalized from AddTask-to-a-
// Workers-pool to Create-a-Task-per-item.
func MapStream[T, R any](
	ctx *Context, sched *Scheduler, in <-chan T, fn func(t *Task[R], item T) (R, error), preserveOrder bool,
) (<-chan R, <-chan error) {
	out := make(chan R, 64)
	errsOut := make(chan error, 64)

	go func() {
		var wg sync.WaitGroup

		var events chan completionEvent[R]
		var collector *orderedCollector[R]
		if preserveOrder {
			events = make(chan completionEvent[R], 64)
			collector = newOrderedCollector(events, out)
			go collector.run()
		}

		idx := 0
		for v := range in {
			i := idx
			idx++
			item := v
			t := Create(ctx, sched, func(self *Task[R]) (R, error) { return fn(self, item) })

			wg.Add(1)
			go func() {
				defer wg.Done()
				r, err := t.Wait()
				if err != nil {
					errsOut <- newTaskTaggedError(err, t.ID(), true, i)
					if preserveOrder {
						events <- completionEvent[R]{idx: i}
					}
					return
				}
				if preserveOrder {
					events <- completionEvent[R]{idx: i, val: r, present: true}
				} else {
					out <- r
				}
			}()
		}

		wg.Wait()
		if preserveOrder {
			close(events)
			collector.Wait()
		}
		close(out)
		close(errsOut)
	}()

	return out, errsOut
}

// ForEachStream runs fn over items from in concurrently, discarding
// results, and streams the failures (if any) on the returned channel, which
// closes once in is drained and every started Task has settled.
func ForEachStream[T any](ctx *Context, sched *Scheduler, in <-chan T, fn func(t *Task[struct{}], item T) error) <-chan error {
	out, errs := MapStream[T, struct{}](ctx, sched, in, func(t *Task[struct{}], item T) (struct{}, error) {
		return struct{}{}, fn(t, item)
	}, false)
	go func() {
		for range out {
		}
	}()
	return errs
}
