// Package util provides small helpers shared across the engine.
package util

import (
	"cmp"
	"context"
	"fmt"
	"time"
)

// Retry calls fn up to attempts times, sleeping delay between failed attempts.
// It returns nil on the first success, otherwise the last error. A cancelled
// context stops the loop early.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", i+1, err)
		case <-t.C:
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

// RetryValue is Retry for functions that return a value.
func RetryValue[T any](ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := Retry(ctx, attempts, delay, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Clamp limits v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
