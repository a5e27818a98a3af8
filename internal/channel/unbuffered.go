package channel

import "sync/atomic"

// Unbuffered hands values straight to a waiting receiver.
type Unbuffered[T any] struct {
	ch      chan T
	dropped atomic.Int64
}

func NewUnbuffered[T any]() *Unbuffered[T] {
	return &Unbuffered[T]{ch: make(chan T)}
}

// Send blocks until a receiver takes v.
func (u *Unbuffered[T]) Send(v T) {
	u.ch <- v
}

// TrySend hands v over only if a receiver is already waiting.
func (u *Unbuffered[T]) TrySend(v T) bool {
	select {
	case u.ch <- v:
		return true
	default:
		u.dropped.Add(1)
		return false
	}
}

func (u *Unbuffered[T]) Dropped() int64 { return u.dropped.Load() }

func (u *Unbuffered[T]) Receive() <-chan T { return u.ch }

// Len and Cap are always 0.
func (u *Unbuffered[T]) Len() int { return 0 }

func (u *Unbuffered[T]) Cap() int { return 0 }

func (u *Unbuffered[T]) Close() {
	close(u.ch)
}
