package engine

import (
	"container/heap"
	"sync"
	"time"

	"github.com/bolworks/api/internal/model"
)

// DispatchQueue hands out job identifiers to workers strictly by priority,
// FIFO within a priority level. It is bounded: Push fails with
// ErrCapacityExceeded when the buffer is full, and admission must treat that
// as a rejected submission.
type DispatchQueue struct {
	mu    sync.Mutex
	items entryHeap
	seq   uint64

	// tokens carries one element per queued entry so Pop can block with a
	// timeout without spinning. Buffer size equals the queue capacity, so
	// a send never drops.
	tokens chan struct{}
}

type entry struct {
	id       string
	priority model.Priority
	seq      uint64
}

// NewDispatchQueue creates a queue bounded at capacity entries.
func NewDispatchQueue(capacity int) *DispatchQueue {
	return &DispatchQueue{
		items:  make(entryHeap, 0, capacity),
		tokens: make(chan struct{}, capacity),
	}
}

// Push enqueues a job id at the given priority.
func (q *DispatchQueue) Push(id string, priority model.Priority) error {
	q.mu.Lock()
	if len(q.items) >= cap(q.tokens) {
		q.mu.Unlock()
		return ErrCapacityExceeded
	}
	q.seq++
	heap.Push(&q.items, entry{id: id, priority: priority, seq: q.seq})
	q.mu.Unlock()

	q.tokens <- struct{}{}
	return nil
}

// Pop blocks up to timeout for an entry and returns the id of the highest
// priority job, earliest-enqueued among equals. The remove-and-return is
// atomic: no entry is handed to two callers.
func (q *DispatchQueue) Pop(timeout time.Duration) (string, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-q.tokens:
	case <-timer.C:
		return "", false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	e := heap.Pop(&q.items).(entry)
	return e.id, true
}

// Len returns the current queue depth.
func (q *DispatchQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// entryHeap orders by priority descending, then insertion sequence ascending.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
