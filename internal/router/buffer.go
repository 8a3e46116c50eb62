package router

import "sync"

// Buffer is a thread-safe FIFO that doubles its capacity when full, so
// producers never block and never drop.
type Buffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	tail   int
	count  int
	closed bool

	// Stats
	totalIn  int64
	totalOut int64
	resizes  int
}

// NewBuffer creates a buffer with the given initial capacity.
func NewBuffer[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &Buffer[T]{items: make([]T, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Put appends an item, growing the buffer if needed.
// Returns false if the buffer is closed.
func (b *Buffer[T]) Put(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	if b.count == len(b.items) {
		b.grow()
	}

	b.items[b.tail] = item
	b.tail = (b.tail + 1) % len(b.items)
	b.count++
	b.totalIn++

	b.cond.Signal()
	return true
}

// Take removes and returns the oldest item, blocking until one is available
// or the buffer is closed. The second return is false once the buffer is
// closed and drained.
func (b *Buffer[T]) Take() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.takeLocked(), true
}

// Drain removes up to max items without blocking. A max of 0 drains
// everything currently buffered.
func (b *Buffer[T]) Drain(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.count
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	for i := range out {
		out[i] = b.takeLocked()
	}
	return out
}

// Close wakes all blocked consumers. Put returns false afterwards; Take
// drains the remainder before reporting closure.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of buffered items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer counters.
func (b *Buffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:    b.count,
		Capacity: len(b.items),
		TotalIn:  b.totalIn,
		TotalOut: b.totalOut,
		Resizes:  b.resizes,
	}
}

// BufferStats contains buffer counters.
type BufferStats struct {
	Count    int
	Capacity int
	TotalIn  int64
	TotalOut int64
	Resizes  int
}

// takeLocked pops one item. Caller holds b.mu and has checked count > 0.
func (b *Buffer[T]) takeLocked() T {
	item := b.items[b.head]
	var zero T
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.count--
	b.totalOut++
	return item
}

// grow doubles capacity, unwrapping the ring. Caller holds b.mu.
func (b *Buffer[T]) grow() {
	next := make([]T, len(b.items)*2)
	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.items[b.head:b.tail])
		} else {
			n := copy(next, b.items[b.head:])
			copy(next[n:], b.items[:b.tail])
		}
	}
	b.items = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}
