// Package channel wraps the event queues of the dispatcher so their depth and
// overflow can be reported. Debug builds swap them for unbuffered queues.
package channel

// Receiver provides read access to a queue.
type Receiver[T any] interface {
	Receive() <-chan T
	Len() int
	Cap() int
}

// Sender provides write access to a queue.
type Sender[T any] interface {
	// Send blocks until the value is accepted.
	Send(T)
	// TrySend reports false instead of blocking when the value cannot be
	// accepted now. Every refusal is counted.
	TrySend(T) bool
	// Dropped returns how many values TrySend refused.
	Dropped() int64
}

// Channel combines read and write access.
type Channel[T any] interface {
	Receiver[T]
	Sender[T]
	Close()
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	Len     int   `json:"len"`
	Cap     int   `json:"cap"`
	Dropped int64 `json:"dropped"`
}

// Snapshot reads the stats of c.
func Snapshot[T any](c Channel[T]) Stats {
	return Stats{Len: c.Len(), Cap: c.Cap(), Dropped: c.Dropped()}
}
