// Package loop provides the timer-and-dispatch core of the Loom daemon:
// a single logical goroutine that executes scheduled callbacks in time order,
// plus a bridge for marshaling calls from worker goroutines onto that
// goroutine so user callbacks never run concurrently.
//
// # Delayed Calls
//
// A DelayedCall is a cancellable, time-ordered callback registration. It is
// created through a Scheduler and transitions exactly once from pending to
// either called or cancelled:
//
//	dc, err := lp.CallLater(5*time.Second, func(args ...any) {
//		fmt.Println("fired")
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	// change of plans
//	if err := dc.Cancel(); err != nil {
//		log.Fatal(err)
//	}
//
// Misusing a handle after it reached a terminal state surfaces
// ErrAlreadyCalled or ErrAlreadyCancelled; these are programmer errors and
// are never retried.
//
// # Drivers
//
// Two drivers implement the Scheduler and Caller contracts:
//
//   - Loop runs a background goroutine against the wall clock. All firings
//     and all calls marshaled in via CallFromThread execute on that one
//     goroutine.
//   - Manual is driven explicitly by the caller: Advance moves time forward
//     and fires due calls, RunThreadCalls drains marshaled calls. It exists
//     so time-dependent behavior can be tested deterministically.
//
// # Cross-Goroutine Delivery
//
// Worker goroutines must never touch loop state directly. Instead they hand
// a closure to Caller.CallFromThread, which queues it for execution on the
// loop goroutine. Delivery is FIFO per submitting goroutine; ordering across
// goroutines is unspecified.
package loop
