// Package queue implements the relay's bounded priority queue (§3, §5, §9):
// a binary heap ordered by (priority descending, queued_at ascending),
// mutated under a single lock, replacing the "actor-per-worker with shared
// mutable queue" pattern the redesign notes flag.
package queue

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

// Priority is the submission priority (§3).
type Priority int

const (
	Low      Priority = 1
	Normal   Priority = 2
	High     Priority = 3
	Critical Priority = 4
)

// ErrQueueFull is returned by Enqueue when the queue is at max_queue_size.
var ErrQueueFull = errors.New("queue full")

// Transaction is the in-memory enqueue envelope (§3 "Queued transaction").
// Transaction holds an opaque JSON-able payload (the raw transaction
// metadata) rather than a typed struct, matching the original's
// metadata-map shape and the `signedTx`/`id` key names it requires.
type Transaction struct {
	ID         string
	ChainID    uint64
	Metadata   map[string]string // must carry "id" and "signedTx"
	Priority   Priority
	QueuedAt   time.Time
	RetryCount int
	MaxRetries int
	RetryDelay time.Duration
}

// item is the heap element; index is maintained by container/heap for
// O(log n) removal (unused here but kept for completeness/testability).
type item struct {
	tx    *Transaction
	index int
}

type heapSlice []*item

func (h heapSlice) Len() int { return len(h) }

// Less implements (priority descending, queued_at ascending).
func (h heapSlice) Less(i, j int) bool {
	if h[i].tx.Priority != h[j].tx.Priority {
		return h[i].tx.Priority > h[j].tx.Priority
	}
	return h[i].tx.QueuedAt.Before(h[j].tx.QueuedAt)
}

func (h heapSlice) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *heapSlice) Push(x interface{}) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *heapSlice) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Queue is the shared, lock-protected priority structure every worker polls.
type Queue struct {
	mu       sync.Mutex
	h        heapSlice
	maxSize  int
}

func New(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = 1000
	}
	q := &Queue{maxSize: maxSize}
	heap.Init(&q.h)
	return q
}

// Enqueue appends tx, failing synchronously with ErrQueueFull once the
// queue reaches max_queue_size (§4.3 enqueue contract).
func (q *Queue) Enqueue(tx *Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.h) >= q.maxSize {
		return ErrQueueFull
	}
	heap.Push(&q.h, &item{tx: tx})
	return nil
}

// Pop removes and returns the highest-priority, earliest-queued entry, or
// (nil, false) if the queue is empty.
func (q *Queue) Pop() (*Transaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.h) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.h).(*item)
	return it.tx, true
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}
