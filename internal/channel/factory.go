//go:build !debug

package channel

// New returns a queue holding up to size events.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}
