package loop

import "container/heap"

// callHeap is a min-heap of pending calls ordered by target fire time.
// Implementation notes
//   - Satisfies container/heap.Interface so callers must use heap.Push/Pop.
//   - Len/Less/Swap have value receivers because they don't mutate the slice
//     header; Push/Pop mutate it and therefore use pointer receivers.
//
// Concurrency: the heap is *not* thread-safe. All access is protected by the
// owning driver's mutex. Do NOT touch it without holding the lock.
type callHeap []*DelayedCall

var _ heap.Interface = (*callHeap)(nil)

// Len returns the number of pending calls in the heap.
func (h callHeap) Len() int { return len(h) }

// Less reports whether call i fires before call j (min-heap).
// Ties break on id so calls scheduled earlier fire first.
func (h callHeap) Less(i, j int) bool {
	if h[i].target != h[j].target {
		return h[i].target < h[j].target
	}
	return h[i].id < h[j].id
}

// Swap exchanges calls i and j and keeps their heap indices current.
func (h callHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx, h[j].heapIdx = i, j
}

// Push inserts x into the heap (container/heap calls this).
func (h *callHeap) Push(x any) {
	d, ok := x.(*DelayedCall)
	if !ok {
		// This should never happen in practice since we control all callers,
		// but handle it gracefully to satisfy the linter
		return
	}
	d.heapIdx = len(*h)
	*h = append(*h, d)
}

// Pop removes and returns the earliest call (container/heap calls this).
func (h *callHeap) Pop() any {
	old := *h
	n := len(old)
	d := old[n-1]
	d.heapIdx = -1 // Mark as no longer in heap
	old[n-1] = nil
	*h = old[:n-1]
	return d
}
