package async

import (
	"context"

	"github.com/convivia-lab/convivia/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Dispatch executes a handler function asynchronously in a new goroutine.
// It creates a background context and handles errors and panics.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	// Create a new background context but preserve logger
	bgCtx := context.Background()
	if logger := logging.From(ctx); logger != nil {
		bgCtx = logging.With(bgCtx, logger)
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger := logging.From(bgCtx)
				logger.Error("panic in async handler", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			logger := logging.From(bgCtx)
			logger.Error("async handler failed", "error", goerr.Unwrap(err))
		}
	}()
}

// Task is a handle for a background computation whose result is joined
// later within the same request scope. Unlike Dispatch, the goroutine is
// owned by the caller and must be awaited via Wait before the turn ends.
type Task[T any] struct {
	done   chan struct{}
	result T
	err    error
}

// Run starts fn in a goroutine and returns a handle to join it.
// Panics inside fn are recovered and surfaced as errors.
func Run[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = goerr.New("panic in background task", goerr.V("panic", r))
			}
		}()
		t.result, t.err = fn(ctx)
	}()

	return t
}

// Wait blocks until the task completes or the context is canceled.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		var zero T
		return zero, goerr.Wrap(ctx.Err(), "background task canceled")
	}
}
