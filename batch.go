package asyncrt

import "errors"

// All spawns one Task per fn, all concurrently, and blocks the calling
// goroutine until every one of them settles. Results are returned in input
// order regardless of completion order; a failing Task contributes a
// TaskMetaError (tagged with its id and input index) to the joined error,
// and its slot in results stays zero-valued.
//
// Adapted from the teacher's RunAll: same "spawn all, wait for completions,
// join errors" shape, generalized from the Workers engine to bare Tasks.
func All[R any](ctx *Context, sched *Scheduler, fns []func(*Task[R]) (R, error)) ([]R, error) {
	if len(fns) == 0 {
		return nil, nil
	}

	tasks := make([]*Task[R], len(fns))
	for i, fn := range fns {
		tasks[i] = Create(ctx, sched, fn)
	}

	results := make([]R, len(tasks))
	var errs []error
	for i, t := range tasks {
		r, err := t.Wait()
		if err != nil {
			errs = append(errs, newTaskTaggedError(err, t.ID(), true, i))
			continue
		}
		results[i] = r
	}
	return results, errors.Join(errs...)
}

// ForEach runs fn over items concurrently, discarding results, and returns
// the joined error from every failing item (nil if all succeeded).
func ForEach[T any](ctx *Context, sched *Scheduler, items []T, fn func(t *Task[struct{}], item T) error) error {
	if len(items) == 0 {
		return nil
	}
	fns := make([]func(*Task[struct{}]) (struct{}, error), len(items))
	for i := range items {
		item := items[i]
		fns[i] = func(t *Task[struct{}]) (struct{}, error) { return struct{}{}, fn(t, item) }
	}
	_, err := All[struct{}](ctx, sched, fns)
	return err
}

// Map applies fn to every item concurrently and returns the results in
// input order alongside the joined error from any failing item.
func Map[T, R any](ctx *Context, sched *Scheduler, items []T, fn func(t *Task[R], item T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	fns := make([]func(*Task[R]) (R, error), len(items))
	for i := range items {
		item := items[i]
		fns[i] = func(t *Task[R]) (R, error) { return fn(t, item) }
	}
	return All[R](ctx, sched, fns)
}
