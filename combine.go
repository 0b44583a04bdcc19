package asyncrt

import "sync"

// Awaitable is anything a Task can suspend on: Task itself and Deferred both
// satisfy it.
type Awaitable[R any] interface {
	addWaiter(op *Op)
}

// suspender is the minimal surface CombineAll and Transform need from the
// calling Task — just enough to arm and park one composite Op, independent
// of that Task's own result type.
type suspender interface {
	Await(enqueue func(op *Op)) (any, error)
}

// CombineSettler is the handle a CombineAll callback uses to settle the
// overall combine operation (spec §4.F "fn(self, last?, key, error, value)" —
// self here). Calling Resolve or Fail more than once across every callback
// invocation is a no-op after the first.
type CombineSettler[S any] struct {
	op   *Op
	once *sync.Once
}

// Resolve settles the combine operation with v. Only the first call (across
// every CombineAll callback invocation) has effect.
func (h CombineSettler[S]) Resolve(v S) {
	h.once.Do(func() { h.op.Resolve(v) })
}

// Fail settles the combine operation with err. Only the first call (across
// every CombineAll callback invocation) has effect.
func (h CombineSettler[S]) Fail(err error) {
	h.once.Do(func() { h.op.Fail(err) })
}

// CombineAll suspends self until every item in items has settled, in
// completion order, invoking fn once per completion (spec component F,
// `static combine(list, fn)`). fn receives a settler for the overall
// operation, whether this is the last completion, the item's original
// index, and its error-or-value; the combine operation settles only when fn
// calls Resolve or Fail on the settler it is handed — CombineAll itself
// never infers a result from the per-item outcomes. If fn never settles the
// handle, the combine operation hangs like any other unsettled Awaitable.
func CombineAll[R, S any](self suspender, items []Awaitable[R], fn func(h CombineSettler[S], last bool, key int, err error, value R)) (S, error) {
	n := len(items)

	v, err := self.Await(func(mainOp *Op) {
		settler := CombineSettler[S]{op: mainOp, once: &sync.Once{}}
		if n == 0 {
			var zero S
			settler.Resolve(zero)
			return
		}

		var mu sync.Mutex
		remaining := n

		for i, item := range items {
			idx := i
			subOp := NewOp()
			subOp.cb = func(subOp *Op, _ any) {
				val, subErr := subOp.Result()
				mu.Lock()
				remaining--
				last := remaining == 0
				mu.Unlock()

				var rv R
				if subErr == nil {
					rv, _ = val.(R)
				}
				fn(settler, last, idx, subErr, rv)
			}
			item.addWaiter(subOp)
		}
	})
	var zero S
	if err != nil {
		return zero, err
	}
	rv, _ := v.(S)
	return rv, nil
}

// Transform suspends self until src settles, then applies fn to its result
// and yields fn's outcome instead — the functional-composition half of
// component F (distinct from CombineAll's fan-in).
func Transform[R, R2 any](self suspender, src Awaitable[R], fn func(R) (R2, error)) (R2, error) {
	v, err := self.Await(func(op *Op) {
		wrapper := NewOp()
		wrapper.cb = func(wrapper *Op, _ any) {
			val, srcErr := wrapper.Result()
			if srcErr != nil {
				op.Fail(srcErr)
				return
			}
			rv, transformErr := fn(val.(R))
			if transformErr != nil {
				op.Fail(transformErr)
				return
			}
			op.Resolve(rv)
		}
		src.addWaiter(wrapper)
	})
	if err != nil {
		var zero R2
		return zero, err
	}
	return v.(R2), nil
}
