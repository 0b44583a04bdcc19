package asyncrt

import "sync"

// disposeCoordinator encapsulates the Scheduler.Dispose shutdown sequence. It
// is a wiring helper: it doesn't own the shutdown hook list or any channel;
// it orchestrates cancellation, hook execution, waits, and draining in a
// deterministic order.
//
// Dispose() is safe for concurrent calls; the sequence executes exactly once
// (spec §4.D: "dispose (idempotent)").
//
// Adapted from the teacher's lifecycleCoordinator, which sequenced
// cancel -> wait inflight -> close -> wait forwarders -> drain -> close
// channels for a worker pool; here the same shape sequences
// cancel-root -> run shutdown hooks -> wait forwarders -> drain -> close
// the fatal-errors channel for a Scheduler.
type disposeCoordinator struct {
	cancelRoot   func()
	runHooks     func(err error) // walks Scheduler.shutdown, invoking each hook with err
	closeCh      chan struct{}
	forwarderWG  *sync.WaitGroup
	sendWG       *sync.WaitGroup
	drainFatal   func()
	closeFatalCh func()

	once sync.Once
}

func newDisposeCoordinator(
	cancelRoot func(),
	runHooks func(err error),
	closeCh chan struct{},
	forwarderWG *sync.WaitGroup,
	sendWG *sync.WaitGroup,
	drainFatal func(),
	closeFatalCh func(),
) *disposeCoordinator {
	return &disposeCoordinator{
		cancelRoot:   cancelRoot,
		runHooks:     runHooks,
		closeCh:      closeCh,
		forwarderWG:  forwarderWG,
		sendWG:       sendWG,
		drainFatal:   drainFatal,
		closeFatalCh: closeFatalCh,
	}
}

// Dispose executes the shutdown sequence exactly once:
//  1. cancel the root Context (propagates to every descendant)
//  2. run every registered shutdown hook with err, failing its outstanding ops
//  3. close closeCh to stop detached fatal-error senders
//  4. wait for the fatal forwarder and detached senders to exit
//  5. drain any remaining fatal errors best-effort
//  6. close the outward fatal-errors channel
func (dc *disposeCoordinator) Dispose(err error) {
	dc.once.Do(func() {
		if dc.cancelRoot != nil {
			dc.cancelRoot()
		}
		if dc.runHooks != nil {
			dc.runHooks(err)
		}
		if dc.closeCh != nil {
			close(dc.closeCh)
		}
		if dc.forwarderWG != nil {
			dc.forwarderWG.Wait()
		}
		if dc.sendWG != nil {
			dc.sendWG.Wait()
		}
		if dc.drainFatal != nil {
			dc.drainFatal()
		}
		if dc.closeFatalCh != nil {
			dc.closeFatalCh()
		}
	})
}
