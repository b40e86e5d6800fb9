package buffer

import (
	"sync"

	"go.uber.org/zap"
)

// RingBuffer is a thread-safe generic circular buffer.
// When full, new items overwrite the oldest.
type RingBuffer[T any] struct {
	mu       sync.RWMutex
	data     []T
	capacity int
	size     int
	head     int
	dropped  uint64
	logger   *zap.Logger
}

// New creates a RingBuffer with the given capacity (minimum 1)
func New[T any](capacity int, logger *zap.Logger) *RingBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &RingBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
		logger:   logger,
	}
}

// Add inserts an item, overwriting the oldest one if the buffer is full
func (rb *RingBuffer[T]) Add(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.addLocked(item)
}

// AddAll inserts items in order under one lock. Used to requeue a failed batch.
func (rb *RingBuffer[T]) AddAll(items []T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for _, item := range items {
		rb.addLocked(item)
	}
}

func (rb *RingBuffer[T]) addLocked(item T) {
	if rb.size == rb.capacity {
		rb.dropped++
		rb.logger.Warn("ring buffer full, overwriting oldest entry",
			zap.Int("capacity", rb.capacity),
			zap.Uint64("dropped_total", rb.dropped))
	}

	rb.data[rb.head] = item
	rb.head = (rb.head + 1) % rb.capacity
	if rb.size < rb.capacity {
		rb.size++
	}
}

// GetAllAndClear returns all buffered items oldest first and empties the buffer.
// The returned slice is a copy.
func (rb *RingBuffer[T]) GetAllAndClear() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}

	results := make([]T, rb.size)
	start := (rb.head - rb.size + rb.capacity) % rb.capacity
	for i := range results {
		results[i] = rb.data[(start+i)%rb.capacity]
	}

	var zero T
	for i := range rb.data {
		rb.data[i] = zero
	}
	rb.size = 0
	rb.head = 0

	return results
}

// Size returns the current number of entries in the buffer
func (rb *RingBuffer[T]) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// Capacity returns the maximum capacity of the buffer
func (rb *RingBuffer[T]) Capacity() int {
	return rb.capacity
}

// Stats returns the current size, capacity and number of overwritten entries
func (rb *RingBuffer[T]) Stats() (size, capacity int, dropped uint64) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size, rb.capacity, rb.dropped
}
