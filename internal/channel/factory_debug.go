//go:build debug

package channel

// New ignores size so a slow handler stalls the behavior that produced the
// event instead of hiding behind a queue.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}
