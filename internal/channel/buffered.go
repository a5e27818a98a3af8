package channel

import "sync/atomic"

// Buffered queues up to its capacity.
type Buffered[T any] struct {
	ch      chan T
	dropped atomic.Int64
}

func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

func (b *Buffered[T]) Send(v T) {
	b.ch <- v
}

func (b *Buffered[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

func (b *Buffered[T]) Dropped() int64 { return b.dropped.Load() }

func (b *Buffered[T]) Receive() <-chan T { return b.ch }

func (b *Buffered[T]) Len() int { return len(b.ch) }

func (b *Buffered[T]) Cap() int { return cap(b.ch) }

func (b *Buffered[T]) Close() {
	close(b.ch)
}
