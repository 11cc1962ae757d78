package store

import (
	"container/heap"
	"time"
)

// expiryItem is one row of the (instant, id) -> key ordering: the
// earliest expiration is always expq[0] while expq satisfies the heap
// invariant.
type expiryItem struct {
	when time.Time
	id   uint64
	key  string
}

// expiryHeap is a min-heap ordered by (when, id), matching the ordered
// map spec.md describes. No ordered-map/B-tree library in the
// retrieved corpus fits this narrow need (see DESIGN.md), so it is
// built directly on container/heap.
type expiryHeap []expiryItem

func (h expiryHeap) Len() int { return len(h) }

func (h expiryHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].id < h[j].id
	}
	return h[i].when.Before(h[j].when)
}

func (h expiryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *expiryHeap) Push(x any) {
	*h = append(*h, x.(expiryItem))
}

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// remove drops the row keyed by (when, id), if present. Entries without
// expiry never appear here, and overwriting a key always removes its
// previous row, so this is a small linear scan over an otherwise
// tiny working set.
func (h *expiryHeap) remove(when time.Time, id uint64) {
	for i, item := range *h {
		if item.id == id && item.when.Equal(when) {
			heap.Remove(h, i)
			return
		}
	}
}
