package resolve

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/lc/loom/pkg/loop"
)

// ErrNotResolved is returned by Addr and Endpoints before the outcome has
// been delivered.
var ErrNotResolved = errors.New("lookup not resolved yet")

// Lookup states. The cell transitions unset→settled exactly once; whichever
// of the worker-delivery and deadline paths wins the compare-and-set
// performs delivery, the loser only cleans up.
const (
	_stateUnset uint32 = iota
	_stateSettling
	_stateSettled
)

// Lookup is the future-like handle for one GetHostByName call. It is
// settled exactly once, with either an address or an error.
type Lookup struct {
	host string

	state atomic.Uint32
	done  chan struct{}
	addr  string
	err   error

	mu        sync.Mutex // guards callbacks
	callbacks []func(addr string, err error)

	// deadline is the timeout call to cancel on worker-delivered
	// completion; nil when no timeout was armed.
	deadline *loop.DelayedCall
}

func newLookup(host string) *Lookup {
	return &Lookup{
		host: host,
		done: make(chan struct{}),
	}
}

// Host returns the name being resolved.
func (l *Lookup) Host() string { return l.host }

// Done returns a channel closed when the outcome has been delivered.
func (l *Lookup) Done() <-chan struct{} { return l.done }

// Addr returns the outcome without blocking. Before delivery it returns
// ErrNotResolved.
func (l *Lookup) Addr() (string, error) {
	select {
	case <-l.done:
		return l.addr, l.err
	default:
		return "", ErrNotResolved
	}
}

// Wait blocks until the outcome is delivered or ctx ends.
func (l *Lookup) Wait(ctx context.Context) (string, error) {
	select {
	case <-l.done:
		return l.addr, l.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// OnComplete registers fn to run once the outcome is delivered. Callbacks
// run on the settling goroutine (the loop, under a live driver); if the
// lookup already settled, fn runs immediately on the calling goroutine.
func (l *Lookup) OnComplete(fn func(addr string, err error)) {
	l.mu.Lock()
	if l.state.Load() != _stateSettled {
		l.callbacks = append(l.callbacks, fn)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	fn(l.addr, l.err)
}

// settle attempts the one-shot unset→settled transition, storing the
// outcome and running registered callbacks. It reports whether this caller
// won; a losing caller must treat the outcome as discarded.
func (l *Lookup) settle(addr string, err error) bool {
	if !l.state.CompareAndSwap(_stateUnset, _stateSettling) {
		return false
	}
	l.addr = addr
	l.err = err

	l.mu.Lock()
	callbacks := l.callbacks
	l.callbacks = nil
	l.state.Store(_stateSettled)
	l.mu.Unlock()

	close(l.done)
	for _, fn := range callbacks {
		fn(addr, err)
	}
	return true
}
