package loop

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var (
	_ Scheduler = (*Manual)(nil)
	_ Caller    = (*Manual)(nil)
)

// Manual is the deterministic driver. It implements the same Scheduler and
// Caller contracts as Loop but runs no goroutine of its own: the caller
// advances time explicitly with Advance and drains marshaled calls with
// RunThreadCalls, both of which fire callbacks on the calling goroutine.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	pending callHeap
	queued  []func()
	ids     atomic.Uint64
}

// NewManual creates a Manual driver with its clock at zero.
func NewManual() *Manual {
	return &Manual{pending: make(callHeap, 0)}
}

// Now returns the current simulated time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// CallLater schedules fn to fire no earlier than Now() + delay.
func (m *Manual) CallLater(delay time.Duration, fn Callback, args ...any) (*DelayedCall, error) {
	if delay < 0 {
		return nil, ErrNegativeDelay
	}

	m.mu.Lock()
	d := newDelayedCall(m.ids.Inc(), m.now+delay, m.Now, fn, args...)
	d.cancelHook = m.removeCall
	d.resetHook = m.rescheduleCall
	d.targetFn = m.callTarget
	heap.Push(&m.pending, d)
	m.mu.Unlock()

	return d, nil
}

// CallFromThread queues fn until the next RunThreadCalls. It never fails:
// a Manual driver has no shutdown state.
func (m *Manual) CallFromThread(fn func()) error {
	m.mu.Lock()
	m.queued = append(m.queued, fn)
	m.mu.Unlock()
	return nil
}

// Advance moves the clock forward by d, firing every call that becomes due
// in time order on the calling goroutine. Callbacks observe Now() equal to
// their own target time, and may schedule further calls within the window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	end := m.now + d

	for m.pending.Len() > 0 && m.pending[0].target <= end {
		popped, ok := heap.Pop(&m.pending).(*DelayedCall)
		if !ok {
			continue
		}
		if popped.target > m.now {
			m.now = popped.target
		}
		m.mu.Unlock()

		// cancelled between pop and fire is benign
		_ = popped.fire()

		m.mu.Lock()
	}

	m.now = end
	m.mu.Unlock()
}

// RunThreadCalls drains calls marshaled in via CallFromThread, executing
// them FIFO on the calling goroutine. It returns the number executed.
func (m *Manual) RunThreadCalls() int {
	m.mu.Lock()
	queued := m.queued
	m.queued = nil
	m.mu.Unlock()

	for _, fn := range queued {
		fn()
	}
	return len(queued)
}

// PendingCalls returns the number of calls not yet fired or cancelled.
func (m *Manual) PendingCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Len()
}

// Pending snapshots the outstanding calls in fire order.
func (m *Manual) Pending() []*DelayedCall {
	m.mu.Lock()
	calls := make([]*DelayedCall, len(m.pending))
	copy(calls, m.pending)
	m.mu.Unlock()

	sort.Slice(calls, func(i, j int) bool {
		if calls[i].target != calls[j].target {
			return calls[i].target < calls[j].target
		}
		return calls[i].id < calls[j].id
	})
	return calls
}

func (m *Manual) callTarget(d *DelayedCall) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return d.target
}

func (m *Manual) removeCall(d *DelayedCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.heapIdx >= 0 && d.heapIdx < m.pending.Len() {
		heap.Remove(&m.pending, d.heapIdx)
	}
}

func (m *Manual) rescheduleCall(d *DelayedCall, target time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.target = target
	if d.heapIdx >= 0 && d.heapIdx < m.pending.Len() {
		heap.Fix(&m.pending, d.heapIdx)
	}
}
