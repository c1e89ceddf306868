package loop

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"time"
)

var (
	// ErrAlreadyCalled is returned when operating on a DelayedCall that has fired.
	ErrAlreadyCalled = errors.New("delayed call already called")
	// ErrAlreadyCancelled is returned when operating on a DelayedCall that was cancelled.
	ErrAlreadyCancelled = errors.New("delayed call already cancelled")
	// ErrNegativeDelay is returned when a negative delay is requested.
	ErrNegativeDelay = errors.New("delay must not be negative")
)

// Callback is the function signature executed when a DelayedCall fires.
// Stored arguments, including Keyword values, are passed through as-is.
type Callback func(args ...any)

// Keyword is a named argument for a DelayedCall. It renders as name=value in
// the call's debug string and is otherwise passed to the callback like any
// positional argument.
type Keyword struct {
	Name  string
	Value any
}

// KV is shorthand for constructing a Keyword argument.
func KV(name string, value any) Keyword {
	return Keyword{Name: name, Value: value}
}

// DelayedCall is a single cancellable, time-ordered callback entry.
// Instances are created by a Scheduler and reach a terminal state exactly
// once: pending→called when the driver fires them, or pending→cancelled via
// Cancel. A terminal DelayedCall is dropped by its driver and never reused.
type DelayedCall struct {
	id   uint64
	fn   Callback
	args []any
	name string // callback name for String()

	// target and heapIdx are guarded by the owning driver's mutex,
	// not by mu. They are only touched through the reset/cancel hooks
	// and the driver's own heap operations.
	target  time.Duration
	heapIdx int

	clock      func() time.Duration
	cancelHook func(*DelayedCall)
	resetHook  func(*DelayedCall, time.Duration)
	targetFn   func(*DelayedCall) time.Duration

	mu        sync.Mutex // guards called, cancelled
	called    bool
	cancelled bool
}

// newDelayedCall builds a call with explicit identity, hooks and clock.
// Drivers use it from CallLater; tests use it to pin ids and clocks.
func newDelayedCall(id uint64, target time.Duration, clock func() time.Duration, fn Callback, args ...any) *DelayedCall {
	return &DelayedCall{
		id:      id,
		fn:      fn,
		args:    args,
		name:    funcName(fn),
		target:  target,
		heapIdx: -1,
		clock:   clock,
	}
}

// ID returns the call's identity token. Ids are assigned by the owning
// driver from a monotonic counter and are stable for the call's lifetime.
func (d *DelayedCall) ID() uint64 { return d.id }

// Active reports whether the call is still pending.
func (d *DelayedCall) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.called && !d.cancelled
}

// Cancel transitions the call from pending to cancelled and unregisters it
// from its driver. It returns ErrAlreadyCalled if the call has fired and
// ErrAlreadyCancelled if it was cancelled before.
func (d *DelayedCall) Cancel() error {
	d.mu.Lock()
	switch {
	case d.cancelled:
		d.mu.Unlock()
		return ErrAlreadyCancelled
	case d.called:
		d.mu.Unlock()
		return ErrAlreadyCalled
	}
	d.cancelled = true
	d.mu.Unlock()

	if d.cancelHook != nil {
		d.cancelHook(d)
	}
	return nil
}

// Reset reschedules a still-pending call to fire at clock() + delay.
// Same terminal-state errors as Cancel; negative delay is rejected.
func (d *DelayedCall) Reset(delay time.Duration) error {
	if delay < 0 {
		return ErrNegativeDelay
	}
	if err := d.checkPending(); err != nil {
		return err
	}
	if d.resetHook != nil {
		d.resetHook(d, d.clock()+delay)
	}
	return nil
}

// Delay pushes a still-pending call's fire time back by extra.
// Same terminal-state errors as Cancel.
func (d *DelayedCall) Delay(extra time.Duration) error {
	if err := d.checkPending(); err != nil {
		return err
	}
	if d.resetHook != nil {
		d.resetHook(d, d.currentTarget()+extra)
	}
	return nil
}

// currentTarget reads the fire target through the owning driver's lock.
// Unowned calls (no driver yet) fall back to the stored value.
func (d *DelayedCall) currentTarget() time.Duration {
	if d.targetFn != nil {
		return d.targetFn(d)
	}
	return d.target
}

// fire transitions pending→called and invokes the callback with its stored
// arguments. Only the owning driver calls it, on the loop goroutine.
func (d *DelayedCall) fire() error {
	d.mu.Lock()
	switch {
	case d.cancelled:
		d.mu.Unlock()
		return ErrAlreadyCancelled
	case d.called:
		d.mu.Unlock()
		return ErrAlreadyCalled
	}
	d.called = true
	d.mu.Unlock()

	d.fn(d.args...)
	return nil
}

func (d *DelayedCall) checkPending() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.cancelled:
		return ErrAlreadyCancelled
	case d.called:
		return ErrAlreadyCalled
	}
	return nil
}

// String renders the diagnostic representation of the call:
//
//	<DelayedCall 0xc8 [10.5s] called=0 cancelled=0 nothing(3, A=5)>
//
// The field set (id, seconds remaining, called/cancelled flags, call
// signature with positional then key=value arguments) is a contract that
// tooling depends on; do not reorder or reformat it.
func (d *DelayedCall) String() string {
	d.mu.Lock()
	called, cancelled := boolFlag(d.called), boolFlag(d.cancelled)
	d.mu.Unlock()

	remaining := d.currentTarget()
	if d.clock != nil {
		remaining -= d.clock()
	}

	return fmt.Sprintf("<DelayedCall %#x [%.1fs] called=%d cancelled=%d %s(%s)>",
		d.id, remaining.Seconds(), called, cancelled, d.name, renderArgs(d.args))
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// renderArgs renders stored arguments in ordinary call syntax: positional
// values first, then Keyword values as name=value, comma-separated.
func renderArgs(args []any) string {
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		if kw, ok := a.(Keyword); ok {
			fmt.Fprintf(&b, "%s=%v", kw.Name, kw.Value)
			continue
		}
		fmt.Fprintf(&b, "%v", a)
	}
	return b.String()
}

// funcName resolves a callback's symbol name with the package path stripped,
// falling back to "unknown" for non-symbolic functions.
func funcName(fn Callback) string {
	if fn == nil {
		return "unknown"
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "unknown"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	// method values carry an -fm suffix
	return strings.TrimSuffix(name, "-fm")
}
