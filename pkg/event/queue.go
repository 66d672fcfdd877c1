package event

import (
	"container/heap"
	"sync"
	"time"
)

// Queue is a bounded, priority-ordered event buffer. Lower priority
// values are served first; events with equal priority are served in
// insertion order (a monotonic sequence number breaks ties, so ordering
// is stable without wall-clock comparison).
//
// Add is safe for concurrent use by multiple monitor goroutines. TryGet
// is intended for a single consumer (the dispatcher loop). When the
// queue is full, Add drops the incoming event rather than blocking the
// producer; drops are counted and observable via Dropped.
type Queue struct {
	mu      sync.Mutex
	items   eventHeap
	maxSize int
	seq     uint64
	dropped uint64

	// wake is pulsed on Add so a parked TryGet can re-check the heap.
	wake chan struct{}
}

// DefaultMaxQueueSize bounds the queue when no explicit size is given.
const DefaultMaxQueueSize = 256

// NewQueue creates a Queue holding at most maxSize events. A maxSize of
// zero or less falls back to DefaultMaxQueueSize.
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = DefaultMaxQueueSize
	}
	return &Queue{
		maxSize: maxSize,
		wake:    make(chan struct{}, 1),
	}
}

// Add enqueues ev with the given priority (lower = served first). If the
// queue is at capacity the event is dropped and false is returned. Add
// never blocks.
func (q *Queue) Add(ev Event, priority int) bool {
	q.mu.Lock()
	if q.items.Len() >= q.maxSize {
		q.dropped++
		q.mu.Unlock()
		return false
	}
	q.seq++
	heap.Push(&q.items, queued{ev: ev, priority: priority, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// TryGet pops the highest-priority event, waiting up to timeout for one
// to arrive. The second return is false on timeout.
func (q *Queue) TryGet(timeout time.Duration) (Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(queued)
			q.mu.Unlock()
			return item.ev, true
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-deadline.C:
			return Event{}, false
		}
	}
}

// Size returns the number of queued events.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Dropped returns the number of events rejected because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// queued wraps an event with its ordering key.
type queued struct {
	ev       Event
	priority int
	seq      uint64
}

// eventHeap implements heap.Interface ordered by (priority, seq).
type eventHeap []queued

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) {
	*h = append(*h, x.(queued))
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
