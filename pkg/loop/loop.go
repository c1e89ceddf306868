package loop

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/lc/loom/internal/log"
)

// ErrClosed is returned when scheduling against a driver that has shut down.
var ErrClosed = errors.New("loop closed")

// Small buffer for marshaled calls to avoid blocking workers momentarily.
const _callBufferSize = 64

// Scheduler is the loop-time contract: a monotonic clock plus registration
// of a callback to run no earlier than Now() + delay.
type Scheduler interface {
	// Now returns monotonic time since the driver's epoch.
	Now() time.Duration
	// CallLater schedules fn to fire no earlier than Now() + delay and
	// returns a cancellable handle. Negative delay is an error.
	CallLater(delay time.Duration, fn Callback, args ...any) (*DelayedCall, error)
}

// Caller is the cross-goroutine bridge contract: it marshals fn onto the
// loop goroutine for single-threaded execution.
type Caller interface {
	// CallFromThread queues fn for execution on the loop goroutine.
	// It returns ErrClosed if the driver has shut down.
	CallFromThread(fn func()) error
}

var (
	_ Scheduler = (*Loop)(nil)
	_ Caller    = (*Loop)(nil)
)

// Loop is the live driver: a single background goroutine fires pending
// calls in time order and drains calls marshaled in from workers. All
// user-visible callbacks execute on that one goroutine.
type Loop struct {
	mu    sync.Mutex // protects pending
	start time.Time
	ids   atomic.Uint64

	pending callHeap
	calls   chan func()
	wake    chan struct{}
	done    chan struct{}

	// callMu serializes bridge sends against shutdown: CallFromThread
	// holds it shared while sending, shutdown takes it exclusively after
	// setting closed, so no send can commit once shutdown has drained.
	callMu sync.RWMutex

	wg       sync.WaitGroup
	cancelFn context.CancelFunc
	closed   atomic.Bool
}

// New creates a Loop. Call Run to start it.
func New() *Loop {
	return &Loop{
		start:   time.Now(),
		pending: make(callHeap, 0),
		calls:   make(chan func(), _callBufferSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Run starts the loop goroutine. The provided context bounds its lifetime;
// Close stops it as well.
func (l *Loop) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	l.cancelFn = cancel

	l.wg.Add(1)
	go l.run(runCtx)

	log.Info("loop: started")
}

// Close stops the loop goroutine and waits for it to exit. Calls still
// pending are neither fired nor cancelled; their handles become inert.
func (l *Loop) Close() {
	l.closed.Store(true)
	if l.cancelFn != nil {
		l.cancelFn()
	}
	l.wg.Wait()
	log.Info("loop: stopped")
}

// Now returns monotonic time since the loop was created.
func (l *Loop) Now() time.Duration {
	return time.Since(l.start)
}

// CallLater schedules fn to fire no earlier than Now() + delay.
func (l *Loop) CallLater(delay time.Duration, fn Callback, args ...any) (*DelayedCall, error) {
	if delay < 0 {
		return nil, ErrNegativeDelay
	}
	if l.closed.Load() {
		return nil, ErrClosed
	}

	d := newDelayedCall(l.ids.Inc(), l.Now()+delay, l.Now, fn, args...)
	d.cancelHook = l.removeCall
	d.resetHook = l.rescheduleCall
	d.targetFn = l.callTarget

	l.mu.Lock()
	heap.Push(&l.pending, d)
	l.mu.Unlock()

	l.wakeUp()
	return d, nil
}

// CallFromThread marshals fn onto the loop goroutine. FIFO per submitting
// goroutine; ordering across goroutines is unspecified. A nil return means
// fn will run (or already ran); ErrClosed means it never will.
func (l *Loop) CallFromThread(fn func()) error {
	l.callMu.RLock()
	defer l.callMu.RUnlock()

	if l.closed.Load() {
		return ErrClosed
	}
	select {
	case <-l.done:
		// the loop goroutine has exited; nothing will run fn
		return ErrClosed
	default:
	}
	select {
	case l.calls <- fn:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// PendingCalls returns the number of calls not yet fired or cancelled.
func (l *Loop) PendingCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending.Len()
}

// run is the central loop. It serializes all firings and marshaled calls.
func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	defer l.shutdown()
	defer log.Debug("loop: run stopping")

	log.Debug("loop: run starting")

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		wait, armed := l.nextWait()

		var timerC <-chan time.Time
		if armed {
			timer.Reset(wait)
			timerC = timer.C
		}

		fired := false
		select {
		case fn := <-l.calls:
			fn()
		case <-l.wake:
		case <-timerC:
			fired = true
			l.fireDue()
		case <-ctx.Done():
			if armed && !timer.Stop() {
				<-timer.C
			}
			return
		}

		if armed && !fired && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// shutdown runs when the loop goroutine exits. Closing done first unblocks
// senders stuck on a full buffer; the exclusive lock then waits out every
// in-flight CallFromThread, after which closed is visible to all future
// senders and no further send can commit. Anything that won the send race
// before that point was acknowledged with nil, so it still runs here.
func (l *Loop) shutdown() {
	close(l.done)

	l.callMu.Lock()
	l.closed.Store(true)
	l.callMu.Unlock()

	for {
		select {
		case fn := <-l.calls:
			fn()
		default:
			return
		}
	}
}

// nextWait returns the delay until the earliest pending call is due.
func (l *Loop) nextWait() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending.Len() == 0 {
		return 0, false
	}
	wait := l.pending[0].target - l.Now()
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// fireDue pops and fires every call whose target time has been reached.
// Callbacks run outside the lock so they can schedule further calls.
func (l *Loop) fireDue() {
	now := l.Now()

	var due []*DelayedCall
	l.mu.Lock()
	for l.pending.Len() > 0 && l.pending[0].target <= now {
		popped, ok := heap.Pop(&l.pending).(*DelayedCall)
		if !ok {
			continue
		}
		due = append(due, popped)
	}
	l.mu.Unlock()

	for _, d := range due {
		if err := d.fire(); err != nil {
			// cancelled between pop and fire; nothing to do
			log.Debugf("loop: skipping call %#x: %v", d.id, err)
		}
	}
}

// removeCall is the cancel hook: it unregisters a cancelled call.
func (l *Loop) removeCall(d *DelayedCall) {
	l.mu.Lock()
	if d.heapIdx >= 0 && d.heapIdx < l.pending.Len() {
		heap.Remove(&l.pending, d.heapIdx)
	}
	l.mu.Unlock()
	l.wakeUp()
}

// callTarget is the target-read hook: it snapshots a call's fire time
// under the heap lock so Delay and String stay coherent with reschedules.
func (l *Loop) callTarget(d *DelayedCall) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return d.target
}

// rescheduleCall is the reset hook: it moves a pending call to a new target.
func (l *Loop) rescheduleCall(d *DelayedCall, target time.Duration) {
	l.mu.Lock()
	d.target = target
	if d.heapIdx >= 0 && d.heapIdx < l.pending.Len() {
		heap.Fix(&l.pending, d.heapIdx)
	}
	l.mu.Unlock()
	l.wakeUp()
}

// wakeUp nudges the loop goroutine to re-arm its timer.
func (l *Loop) wakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
