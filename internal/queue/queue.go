package queue

import "sync"

// DefaultCapacity is the per-user retention of offline entries.
const DefaultCapacity = 50

// Bounded is a FIFO that keeps only its newest capacity entries.
// It is not safe for concurrent use.
type Bounded[T any] struct {
	items    []T
	capacity int
}

// NewBounded returns an empty queue. Non-positive capacities fall back to
// DefaultCapacity.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bounded[T]{capacity: capacity}
}

// Push appends v and evicts from the front while over capacity. It returns
// how many entries were evicted.
func (b *Bounded[T]) Push(v T) int {
	b.items = append(b.items, v)
	over := len(b.items) - b.capacity
	if over <= 0 {
		return 0
	}
	n := copy(b.items, b.items[over:])
	var zero T
	for i := n; i < len(b.items); i++ {
		b.items[i] = zero
	}
	b.items = b.items[:n]
	return over
}

// Drain returns every entry in enqueue order and empties the queue.
func (b *Bounded[T]) Drain() []T {
	out := b.items
	b.items = nil
	return out
}

func (b *Bounded[T]) Len() int { return len(b.items) }

// Store holds one Bounded queue per user.
type Store[T any] struct {
	mu       sync.Mutex
	capacity int
	queues   map[string]*Bounded[T]
}

// NewStore creates a store whose queues share capacity.
func NewStore[T any](capacity int) *Store[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store[T]{
		capacity: capacity,
		queues:   make(map[string]*Bounded[T]),
	}
}

// Enqueue appends v to userID's queue, returning the number of evicted entries.
func (s *Store[T]) Enqueue(userID string, v T) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok {
		q = NewBounded[T](s.capacity)
		s.queues[userID] = q
	}
	return q.Push(v)
}

// Drain atomically removes and returns userID's entries in enqueue order.
func (s *Store[T]) Drain(userID string) []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[userID]
	if !ok {
		return nil
	}
	delete(s.queues, userID)
	return q.Drain()
}

func (s *Store[T]) Len(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q, ok := s.queues[userID]; ok {
		return q.Len()
	}
	return 0
}

func (s *Store[T]) Capacity() int { return s.capacity }
