// Package queue provides the FIFO message/packet queue shared by the
// reliable and unreliable endpoints: unbounded, amortized-O(1) enqueue and
// dequeue, with a non-destructive Peek. The protocol core never reorders
// what a producer enqueued; it only ever drains front to back.
package queue

import channels "gopkg.in/eapache/channels.v1"

// Queue is a generic FIFO built on an unbounded in-memory channel, avoiding
// both the need to pre-size a ring buffer and the producer-blocks-on-full
// backpressure that would violate "send never blocks".
type Queue[T any] struct {
	ch   *channels.InfiniteChannel
	size int
	head *T // one-slot lookahead populated by Peek, consumed by the next Pop
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{ch: channels.NewInfiniteChannel()}
}

// Push enqueues v at the back of the queue. Never blocks.
func (q *Queue[T]) Push(v T) {
	q.ch.In() <- v
	q.size++
}

// Pop removes and returns the item at the front of the queue. ok is false
// if the queue was empty.
func (q *Queue[T]) Pop() (v T, ok bool) {
	if q.head != nil {
		v, q.head = *q.head, nil
		q.size--
		return v, true
	}
	if q.size == 0 {
		return v, false
	}
	// size > 0 means an item was handed to the channel; its buffering
	// goroutine may not have moved it to Out() yet, so wait for it.
	raw, open := <-q.ch.Out()
	if !open {
		return v, false
	}
	q.size--
	return raw.(T), true
}

// Peek returns the item at the front of the queue without removing it.
func (q *Queue[T]) Peek() (v T, ok bool) {
	if q.head == nil {
		item, popped := q.Pop()
		if !popped {
			return v, false
		}
		q.head = &item
		q.size++ // Pop decremented size; Peek must not change depth.
	}
	return *q.head, true
}

// Len returns the current queue depth.
func (q *Queue[T]) Len() int {
	return q.size
}

// Close releases the underlying channel resources.
func (q *Queue[T]) Close() {
	q.ch.Close()
}
