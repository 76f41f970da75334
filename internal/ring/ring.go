// Package ring provides the bounded single-producer single-consumer
// ring used for tick and order hand-off between pipeline stages.
package ring

import (
	"errors"
	"sync/atomic"
)

var ErrCapacity = errors.New("ring capacity must be > 0")

type slot[T any] struct {
	// ready separates "index claimed" from "payload visible": the
	// producer stores it last, the consumer loads it first.
	ready atomic.Uint32
	value T
}

// Ring is a fixed-capacity SPSC ring. TryPush and TryPop never block;
// the producer never overwrites an unconsumed slot. Exactly one
// goroutine may push and exactly one may pop.
type Ring[T any] struct {
	buf  []slot[T]
	mask uint64
	head atomic.Uint64 // next slot to pop
	tail atomic.Uint64 // next slot to push
}

// New allocates a ring holding at least capacity items. Capacity is
// rounded up to a power of two so index wrapping is a mask.
func New[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, ErrCapacity
	}
	size := uint64(1)
	for size < uint64(capacity) {
		size <<= 1
	}
	return &Ring[T]{
		buf:  make([]slot[T], size),
		mask: size - 1,
	}, nil
}

// TryPush appends v and reports whether it was accepted. A false
// return means the ring is full and leaves it unchanged.
func (r *Ring[T]) TryPush(v T) bool {
	tail := r.tail.Load()
	s := &r.buf[tail&r.mask]
	if s.ready.Load() != 0 {
		return false
	}
	s.value = v
	s.ready.Store(1)
	r.tail.Store(tail + 1)
	return true
}

// TryPop removes the oldest item. ok is false when the ring is empty.
func (r *Ring[T]) TryPop() (v T, ok bool) {
	head := r.head.Load()
	s := &r.buf[head&r.mask]
	if s.ready.Load() == 0 {
		return v, false
	}
	v = s.value
	var zero T
	s.value = zero
	s.ready.Store(0)
	r.head.Store(head + 1)
	return v, true
}

// PopBatch pops up to len(dst) items into dst and returns the count.
func (r *Ring[T]) PopBatch(dst []T) int {
	n := 0
	for n < len(dst) {
		v, ok := r.TryPop()
		if !ok {
			break
		}
		dst[n] = v
		n++
	}
	return n
}

// Len returns the current number of buffered items. The value is a
// snapshot and may be stale under concurrent use.
func (r *Ring[T]) Len() int {
	return int(r.tail.Load() - r.head.Load())
}

// Cap returns the usable capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}
