package asyncrt

import (
	"math/rand/v2"
	"sync"
)

// SelectResult carries the outcome of a Select call: which channel won and
// the value it produced. Ok is false for the exhaustion case (spec §4.G
// step 4: no entry ready and either block is false or every entry is
// closed) — the Go analogue of the spec's `[null, null]` — in which case
// Index and Value are zero and Err is nil. Err is non-nil only for a hard
// failure unrelated to channel closure (e.g. the calling Task's context was
// cancelled while suspended).
type SelectResult[T any] struct {
	Index int
	Value T
	Ok    bool
	Err   error
}

type selectPayload[T any] struct {
	index int
	value T
	ok    bool
}

// Select scans channels for one that already has a value ready (spec §4.G
// steps 2-3: Fisher–Yates shuffle via math/rand/v2, auto-seeded, then probe
// each entry with fetch_noblock so no single channel is favored across
// repeated calls). If none is ready, block controls what happens next: with
// block == false, or if every entry is already closed, Select returns the
// exhaustion result immediately (step 4). Otherwise it suspends self's Task
// on whichever entries are still open (step 5), and a channel that closes
// while Select is waiting is counted and skipped rather than treated as a
// win — only the first non-closing completion settles the call. On the way
// out, every losing sub-operation is detached from its channel's receivers
// queue (step 7; an O(1) Detach is what makes this cleanup cheap).
func Select[T any](self suspender, channels []*Channel[T], block bool) SelectResult[T] {
	if len(channels) == 0 {
		return SelectResult[T]{Err: ErrSelectEmpty}
	}

	order := make([]int, len(channels))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	scanClosed := make([]bool, len(channels))
	closedCount := 0
	for _, idx := range order {
		v, state := channels[idx].fetchNoBlock()
		switch state {
		case fetchReady:
			return SelectResult[T]{Index: idx, Value: v, Ok: true}
		case fetchClosed:
			scanClosed[idx] = true
			closedCount++
		}
	}
	if !block || closedCount == len(channels) {
		return SelectResult[T]{}
	}

	v, err := self.Await(func(mainOp *Op) {
		subOps := make([]*Op, len(channels))
		var mu sync.Mutex
		var once sync.Once
		settled := false
		pending := len(channels) - closedCount

		winner := func(idx int, val T) {
			once.Do(func() {
				mu.Lock()
				settled = true
				mu.Unlock()
				for i, so := range subOps {
					if i != idx && so != nil {
						so.detachSelf()
					}
				}
				mainOp.Resolve(selectPayload[T]{index: idx, value: val, ok: true})
			})
		}
		exhausted := func() {
			once.Do(func() {
				mu.Lock()
				settled = true
				mu.Unlock()
				mainOp.Resolve(selectPayload[T]{})
			})
		}

		for _, idx := range order {
			mu.Lock()
			done := settled
			mu.Unlock()
			if done || scanClosed[idx] {
				continue
			}
			idx := idx
			subOp := NewOp()
			subOps[idx] = subOp
			subOp.cb = func(subOp *Op, _ any) {
				mu.Lock()
				if settled {
					mu.Unlock()
					return
				}
				mu.Unlock()

				val, suberr := subOp.Result()
				if suberr != nil {
					// The channel closed while we were waiting on it: count
					// and skip (spec §4.G step 5), don't treat it as a win.
					mu.Lock()
					pending--
					drained := pending == 0
					mu.Unlock()
					if drained {
						exhausted()
					}
					return
				}
				rv, _ := val.(T)
				winner(idx, rv)
			}
			channels[idx].enqueueReceive(subOp)
		}
	})

	if err != nil {
		return SelectResult[T]{Err: err}
	}
	p := v.(selectPayload[T])
	if !p.ok {
		return SelectResult[T]{}
	}
	return SelectResult[T]{Index: p.index, Value: p.value, Ok: true}
}
