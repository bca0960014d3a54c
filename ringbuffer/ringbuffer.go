// Package ringbuffer implements a bounded single-producer/single-consumer
// circular buffer that never blocks and never takes a lock, so that it can be
// used to pass data between the control goroutine and the audio callback.
package ringbuffer

import "sync/atomic"

// RingBuffer is a fixed capacity circular buffer of elements of type T. One
// goroutine may write and one (other) goroutine may read concurrently.
//
// The buffer holds Size()-1 elements at most: one slot is always kept empty
// so that writePtr == readPtr unambiguously means "empty". The cursors are
// kept modulo Size(). The producer publishes writePtr only after the payload
// has been copied in, and the consumer publishes readPtr only after the
// payload has been copied out; sync/atomic loads and stores give the
// acquire/release ordering needed for the opposite side never to observe a
// torn element.
type RingBuffer[T any] struct {
	buffer    []T
	writePtr  atomic.Uint64
	readPtr   atomic.Uint64
	overflows atomic.Uint64
}

// New returns a RingBuffer with size slots, i.e. a capacity of size-1
// elements. Sizes smaller than 2 are rounded up to 2.
func New[T any](size int) *RingBuffer[T] {
	if size < 2 {
		size = 2
	}
	return &RingBuffer[T]{buffer: make([]T, size)}
}

// Size returns the number of slots in the buffer; the usable capacity is one
// less.
func (r *RingBuffer[T]) Size() int {
	return len(r.buffer)
}

// ReadAvailable returns how many elements can be read.
func (r *RingBuffer[T]) ReadAvailable() int {
	return r.readAvailable(r.writePtr.Load(), r.readPtr.Load())
}

// WriteAvailable returns how many elements can be written without
// overflowing.
func (r *RingBuffer[T]) WriteAvailable() int {
	return len(r.buffer) - 1 - r.ReadAvailable()
}

func (r *RingBuffer[T]) readAvailable(wp, rp uint64) int {
	size := uint64(len(r.buffer))
	return int((wp + size - rp) % size)
}

// Write copies all of data into the buffer. If there is not enough room for
// every element, nothing is written, the overflow counter is incremented and
// false is returned. Write never blocks. Only one goroutine may call Write.
func (r *RingBuffer[T]) Write(data []T) bool {
	if len(data) == 0 {
		return true
	}
	wp := r.writePtr.Load()
	rp := r.readPtr.Load()
	if len(r.buffer)-1-r.readAvailable(wp, rp) < len(data) {
		r.overflows.Add(1)
		return false
	}
	n := copy(r.buffer[wp:], data)
	if n < len(data) {
		copy(r.buffer, data[n:])
	}
	r.writePtr.Store((wp + uint64(len(data))) % uint64(len(r.buffer)))
	return true
}

// Read fills data from the buffer. If fewer than len(data) elements are
// available, data is left untouched and false is returned; callers are
// expected to check ReadAvailable first. With peek set, the read cursor is not
// advanced and the same elements will be returned by the next Read. Only one
// goroutine may call Read.
func (r *RingBuffer[T]) Read(data []T, peek bool) bool {
	if len(data) == 0 {
		return true
	}
	wp := r.writePtr.Load()
	rp := r.readPtr.Load()
	if r.readAvailable(wp, rp) < len(data) {
		return false
	}
	n := copy(data, r.buffer[rp:])
	if n < len(data) {
		copy(data[n:], r.buffer)
	}
	if !peek {
		r.readPtr.Store((rp + uint64(len(data))) % uint64(len(r.buffer)))
	}
	return true
}

// Push writes a single element. See Write.
func (r *RingBuffer[T]) Push(v T) bool {
	wp := r.writePtr.Load()
	if r.readAvailable(wp, r.readPtr.Load()) >= len(r.buffer)-1 {
		r.overflows.Add(1)
		return false
	}
	r.buffer[wp] = v
	r.writePtr.Store((wp + 1) % uint64(len(r.buffer)))
	return true
}

// Pop reads a single element; ok is false if the buffer was empty.
func (r *RingBuffer[T]) Pop() (v T, ok bool) {
	rp := r.readPtr.Load()
	if r.writePtr.Load() == rp {
		return v, false
	}
	v = r.buffer[rp]
	var zero T
	r.buffer[rp] = zero // drop references so the GC can collect them
	r.readPtr.Store((rp + 1) % uint64(len(r.buffer)))
	return v, true
}

// Peek returns the next element without consuming it.
func (r *RingBuffer[T]) Peek() (v T, ok bool) {
	rp := r.readPtr.Load()
	if r.writePtr.Load() == rp {
		return v, false
	}
	return r.buffer[rp], true
}

// Discard drops everything currently readable. Only the consumer may call it.
func (r *RingBuffer[T]) Discard() {
	r.readPtr.Store(r.writePtr.Load())
}

// Overflows returns how many writes have been dropped because the buffer was
// full.
func (r *RingBuffer[T]) Overflows() uint64 {
	return r.overflows.Load()
}
