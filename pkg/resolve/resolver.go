// Package resolve performs blocking host-name lookups off the loop without
// ever running user callbacks concurrently with it. A lookup is submitted to
// a worker pool, bounded by a deadline scheduled on the loop, and its outcome
// is marshaled back onto the loop goroutine and delivered exactly once.
package resolve

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lc/loom/internal/log"
	"github.com/lc/loom/pkg/loop"
)

var (
	// ErrLookupTimeout is the cause carried by a LookupError when the
	// deadline elapsed before the worker delivered a result.
	ErrLookupTimeout = errors.New("hostname lookup timed out")
	// ErrEmptyHost is returned when an empty host name is requested.
	ErrEmptyHost = errors.New("empty host")
)

// LookupError is the failure outcome of a resolution: the host that was
// being resolved plus the underlying cause (worker error, pool error, or
// ErrLookupTimeout).
type LookupError struct {
	Host string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup %q: %v", e.Host, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// LookupFunc is the pluggable blocking lookup: it maps a host name to a
// single address string and may return an arbitrary error. It runs on a
// worker goroutine, never on the loop.
type LookupFunc func(host string) (string, error)

// Pool is the worker-pool collaborator: Submit hands fn to a worker
// goroutine for execution. Submission must be safe for concurrent use.
type Pool interface {
	Submit(fn func()) error
}

// Driver is the loop surface the resolver needs: scheduling for deadlines
// and the bridge for delivering worker results. Both loop.Loop and
// loop.Manual satisfy it.
type Driver interface {
	loop.Scheduler
	loop.Caller
}

// Resolver performs one blocking name-to-address lookup per call, off the
// loop, bounded by a caller-supplied timeout, with exactly one outcome
// delivered per lookup.
type Resolver struct {
	driver Driver
	pool   Pool
	lookup LookupFunc
}

// New creates a Resolver around the given driver, worker pool and blocking
// lookup function.
func New(driver Driver, pool Pool, lookup LookupFunc) *Resolver {
	return &Resolver{
		driver: driver,
		pool:   pool,
		lookup: lookup,
	}
}

// GetHostByName resolves host to a single address string. It returns
// immediately; the result is observed through the returned Lookup.
//
// The blocking lookup runs on a worker goroutine. A timeout > 0 arms a
// deadline on the loop; whichever of {worker delivery, deadline} reaches the
// loop first settles the Lookup, and the loser only cleans up. A timeout of
// zero means the lookup is bounded only by the worker outcome. The worker is
// never interrupted: after a timeout its eventual result is discarded.
func (r *Resolver) GetHostByName(host string, timeout time.Duration) *Lookup {
	lk := newLookup(host)

	if strings.TrimSpace(host) == "" {
		lk.settle("", &LookupError{Host: host, Err: ErrEmptyHost})
		return lk
	}

	if timeout > 0 {
		dc, err := r.driver.CallLater(timeout, func(_ ...any) {
			if lk.settle("", &LookupError{Host: host, Err: ErrLookupTimeout}) {
				log.Debugf("resolve: lookup for %q timed out after %v", host, timeout)
			}
		})
		if err != nil {
			lk.settle("", &LookupError{Host: host, Err: err})
			return lk
		}
		lk.deadline = dc
	}

	err := r.pool.Submit(func() {
		addr, lerr := r.lookup(host)
		if cerr := r.driver.CallFromThread(func() { r.deliver(lk, addr, lerr) }); cerr != nil {
			// loop is shutting down; settle directly so waiters don't hang
			r.deliver(lk, addr, lerr)
		}
	})
	if err != nil {
		r.deliver(lk, "", err)
	}

	return lk
}

// deliver settles lk with the worker outcome. It runs on the loop goroutine
// in normal operation. If the deadline already settled the lookup, the
// outcome is discarded without further callbacks; otherwise the now-moot
// deadline call is cancelled, swallowing the expected already-called error.
func (r *Resolver) deliver(lk *Lookup, addr string, lerr error) {
	var outcome error
	if lerr != nil {
		outcome = &LookupError{Host: lk.host, Err: lerr}
	}

	if !lk.settle(addr, outcome) {
		log.Debugf("resolve: late delivery for %q discarded", lk.host)
		return
	}

	if dc := lk.deadline; dc != nil {
		// the deadline may have fired or been raced; both are benign here
		_ = dc.Cancel()
	}
}
