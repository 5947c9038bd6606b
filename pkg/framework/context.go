package framework

import (
	"context"
	"io"
)

// RunWithContextCancel runs fn, which knows nothing about contexts, until
// it returns or ctx is done. On ctx done, onCancel is expected to make fn
// return; the result is then context.Canceled.
func RunWithContextCancel(ctx context.Context, onCancel func(), fn func() error) error {
	result := make(chan error, 1)
	go func() { result <- fn() }()
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
	}
	if onCancel != nil {
		onCancel()
	}
	<-result
	return context.Canceled
}

// RunWithContext is RunWithContextCancel without a cancel hook.
func RunWithContext(ctx context.Context, fn func() error) error {
	return RunWithContextCancel(ctx, nil, fn)
}

// RunWithContextCloser unblocks fn by closing closer when ctx is done.
// closer is closed exactly once whichever way fn ends.
func RunWithContextCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	closed := false
	err := RunWithContextCancel(ctx, func() {
		closer.Close()
		closed = true
	}, fn)
	if !closed {
		closer.Close()
	}
	return err
}
