package asyncrt

import "sync"

// fatalForwarder consumes fatal errors raised by cancellation hooks (spec
// §4.C, §5: "Hooks must not throw; if one does, the runtime treats it as
// fatal") and, on the first one, disposes the owning Scheduler via
// dispose and forwards exactly one error to the outward fatal channel
// (out). If out is not immediately writable it uses a detached sender
// goroutine tracked by sendWG that either delivers later or drops on
// closeCh. After closeCh is closed it drains any remaining internal errors
// and exits.
//
// Adapted from the teacher's errorForwarder (which forwarded the first
// worker-pool error and cancelled the dispatch context); here the
// "cancel" side-effect is disposing the Scheduler instead of cancelling a
// context.Context.
type fatalForwarder struct {
	in      <-chan error    // internal fatal-hook-panic errors
	out     chan<- error    // outward fatal errors
	closeCh <-chan struct{} // closed when the Scheduler disposes
	dispose func(error)     // Scheduler.disposeFromFatal
	sendWG  *sync.WaitGroup
}

func newFatalForwarder(
	in <-chan error, out chan<- error, closeCh <-chan struct{}, dispose func(error), sendWG *sync.WaitGroup,
) *fatalForwarder {
	return &fatalForwarder{in: in, out: out, closeCh: closeCh, dispose: dispose, sendWG: sendWG}
}

func (f *fatalForwarder) run() {
	forwardedFirst := false
	for {
		select {
		case e := <-f.in:
			// Dispose on its own goroutine: Dispose waits for this
			// forwarder to exit, so calling it inline would deadlock.
			go f.dispose(e)
			if !forwardedFirst {
				forwardedFirst = true
				select {
				case f.out <- e:
					// forwarded synchronously
				default:
					f.sendWG.Add(1)
					go func(err error) {
						defer f.sendWG.Done()
						select {
						case f.out <- err:
						case <-f.closeCh:
						}
					}(e)
				}
			}
		case <-f.closeCh:
			for {
				select {
				case <-f.in:
				default:
					return
				}
			}
		}
	}
}
