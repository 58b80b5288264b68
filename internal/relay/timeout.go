package relay

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Do when the deadline elapses before op finishes.
var ErrTimeout = errors.New("operation timed out")

// Do runs op against a deadline. The op receives a context that is
// cancelled when the deadline elapses; on timeout the caller gets
// ErrTimeout immediately and the op is abandoned rather than joined.
func Do[T any](parent context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		value, err := op(ctx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ErrTimeout
		}
		return zero, ctx.Err()
	}
}
