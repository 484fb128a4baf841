// Package notify implements the deferred, coalescing dispatch used for
// item-changed notifications.
//
// A key posted while the queue is idle is delivered at once. A key posted
// while a delivery is running, or while the queue is suspended, joins a
// pending set and is delivered by the drain loop after the current
// handler returns. A key already pending is not queued twice.
//
// Within one drain a key is delivered at most maxDeliveries times: its
// own delivery and one follow-up for posts raised after it. Later posts
// of that key are coalesced into the follow-up already made, so a
// handler that re-posts the key it is handling cannot spin the drain.
package notify

import "sync"

const maxDeliveries = 2

// Queue coalesces keyed notifications. It is meant to be driven from a
// single goroutine; the mutex only guards against misuse from observers
// running elsewhere.
type Queue[K comparable] struct {
	mu        sync.Mutex
	handler   func(K)
	pending   []K
	queued    map[K]struct{}
	rounds    map[K]int // deliveries per key in the running drain
	draining  bool
	suspended int
	delivered uint64
	coalesced uint64
}

// New creates a queue delivering keys to handler.
func New[K comparable](handler func(K)) *Queue[K] {
	return &Queue[K]{
		handler: handler,
		queued:  make(map[K]struct{}),
		rounds:  make(map[K]int),
	}
}

// Post schedules a delivery for k.
func (q *Queue[K]) Post(k K) {
	q.mu.Lock()
	if _, ok := q.queued[k]; ok || q.rounds[k] >= maxDeliveries {
		q.coalesced++
		q.mu.Unlock()
		return
	}
	q.queued[k] = struct{}{}
	q.pending = append(q.pending, k)
	run := !q.draining && q.suspended == 0
	q.mu.Unlock()

	if run {
		q.drain()
	}
}

// Suspend holds deliveries until the matching Resume. Calls nest.
func (q *Queue[K]) Suspend() {
	q.mu.Lock()
	q.suspended++
	q.mu.Unlock()
}

// Resume ends one Suspend. The outermost Resume drains everything queued
// in the meantime.
func (q *Queue[K]) Resume() {
	q.mu.Lock()
	if q.suspended > 0 {
		q.suspended--
	}
	run := q.suspended == 0 && !q.draining && len(q.pending) > 0
	q.mu.Unlock()

	if run {
		q.drain()
	}
}

// Suspended reports whether deliveries are currently held.
func (q *Queue[K]) Suspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended > 0
}

// Pending returns the keys waiting for delivery, in posting order.
func (q *Queue[K]) Pending() []K {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]K, len(q.pending))
	copy(out, q.pending)
	return out
}

// Discard drops everything pending without delivering it.
func (q *Queue[K]) Discard() {
	q.mu.Lock()
	q.pending = nil
	clear(q.queued)
	q.mu.Unlock()
}

// Stats reports delivered and coalesced counts since creation.
func (q *Queue[K]) Stats() (delivered, coalesced uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.delivered, q.coalesced
}

func (q *Queue[K]) drain() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		clear(q.rounds)
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 || q.suspended > 0 {
			q.mu.Unlock()
			return
		}
		k := q.pending[0]
		q.pending = q.pending[1:]
		delete(q.queued, k)
		q.rounds[k]++
		q.delivered++
		q.mu.Unlock()

		if q.handler != nil {
			q.handler(k)
		}
	}
}
