package foldersim

import (
	"container/heap"
	"errors"
	"sort"
	"sync"
	"time"
)

const rankedCap = 256

var (
	// ErrNilClient is returned when Enqueue receives nil.
	ErrNilClient = errors.New("queue: nil client")

	// ErrTerminalClient is returned for a client with nothing left to do.
	ErrTerminalClient = errors.New("queue: client has no pending work")

	// ErrDuplicateClient is returned when the client is already queued.
	ErrDuplicateClient = errors.New("queue: client already queued")
)

// rankedItem is one heap slot. index is maintained by heap.Interface.
type rankedItem struct {
	client *Client
	index  int
}

// rankedHeap is a max-heap by (priority desc, arrival asc, id asc).
type rankedHeap []*rankedItem

func (h rankedHeap) Len() int { return len(h) }

func (h rankedHeap) Less(i, j int) bool {
	return ranksBefore(h[i].client, h[j].client)
}

func (h rankedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *rankedHeap) Push(x any) {
	it := x.(*rankedItem)
	it.index = len(*h)
	*h = append(*h, it)
}

func (h *rankedHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*h = old[:n-1]
	return it
}

// ranksBefore is the dispatch order: higher priority first, then earlier
// arrival, then lower id.
func ranksBefore(a, b *Client) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if !a.arrival.Equal(b.arrival) {
		return a.arrival.Before(b.arrival)
	}
	return a.id < b.id
}

// RankedQueue holds pending clients ordered by priority.
//
// The queue stores client references. PopHighest moves a client out of the
// queue: once popped, the caller is its only owner until it is enqueued
// again. All operations run under one mutex, so a rescore is never observed
// half done.
type RankedQueue struct {
	mu    sync.Mutex
	h     rankedHeap
	byID  map[uint64]*rankedItem
	moved []ClientState
}

// NewRankedQueue returns an empty queue.
func NewRankedQueue() *RankedQueue {
	q := &RankedQueue{
		h:    make(rankedHeap, 0, rankedCap),
		byID: make(map[uint64]*rankedItem, rankedCap),
	}
	heap.Init(&q.h)
	return q
}

// Enqueue makes c visible to future pops. The client's priority is used
// as is; callers score it first (see Score).
func (q *RankedQueue) Enqueue(c *Client) error {
	if c == nil {
		return ErrNilClient
	}
	if !c.eligible() {
		return ErrTerminalClient
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byID[c.id]; ok {
		return ErrDuplicateClient
	}
	it := &rankedItem{client: c}
	heap.Push(&q.h, it)
	q.byID[c.id] = it
	return nil
}

// Score sets c's priority against the current queue length. c must not be
// queued; it belongs to the caller.
func (q *RankedQueue) Score(c *Client, calc Calculator, now time.Time) float64 {
	q.mu.Lock()
	n := q.h.Len()
	q.mu.Unlock()
	c.priority = calc.Score(c, n, now)
	return c.priority
}

// PopHighest removes and returns the best eligible client. Ineligible
// entries found at the top are discarded. It returns false when nothing
// can be dispatched.
func (q *RankedQueue) PopHighest() (*Client, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.h.Len() > 0 {
		it := heap.Pop(&q.h).(*rankedItem)
		delete(q.byID, it.client.id)
		if it.client.eligible() {
			return it.client, true
		}
	}
	return nil, false
}

// RescoreAll recomputes every queued client's priority and restores the
// heap order. It returns snapshots of the clients whose priority moved by
// more than PriorityEpsilon.
//
// RescoreAll runs in O(n) time plus the cost of calc. If calc panics the
// heap order is restored before the panic propagates.
func (q *RankedQueue) RescoreAll(calc Calculator, now time.Time) []ClientState {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.h.Len()
	if n == 0 {
		return nil
	}
	defer heap.Init(&q.h)
	q.moved = q.moved[:0]
	for _, it := range q.h {
		before := it.client.priority
		it.client.priority = calc.Score(it.client, n, now)
		if priorityMoved(before, it.client.priority) {
			q.moved = append(q.moved, it.client.State())
		}
	}

	if len(q.moved) == 0 {
		return nil
	}
	out := make([]ClientState, len(q.moved))
	copy(out, q.moved)
	return out
}

// Len returns the number of queued clients.
func (q *RankedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// Contains reports whether a client with the given id is queued.
func (q *RankedQueue) Contains(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byID[id]
	return ok
}

// Snapshot returns the queued clients in dispatch order.
func (q *RankedQueue) Snapshot() []ClientState {
	q.mu.Lock()
	clients := make([]*Client, 0, q.h.Len())
	for _, it := range q.h {
		clients = append(clients, it.client)
	}
	sort.Slice(clients, func(i, j int) bool { return ranksBefore(clients[i], clients[j]) })
	out := make([]ClientState, len(clients))
	for i, c := range clients {
		out[i] = c.State()
	}
	q.mu.Unlock()
	return out
}

// MaxWait returns the longest time any queued client has been waiting.
func (q *RankedQueue) MaxWait(now time.Time) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	var maxWait time.Duration
	for _, it := range q.h {
		if w := now.Sub(it.client.arrival); w > maxWait {
			maxWait = w
		}
	}
	return maxWait
}
