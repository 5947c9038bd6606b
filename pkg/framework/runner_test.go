package framework

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunnerWait(t *testing.T) {
	r := NewRunner()
	errFail := errors.New("fail")
	started := make(chan struct{})
	r.Go(
		NamedRun("blocked", RunFunc(func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})),
		RunFunc(func(context.Context) error { return errFail }),
	)
	<-started
	r.Stop()
	err := r.Wait()
	require.Equal(t, &AggregatedError{Errors: []error{errFail}}, err)
	require.Equal(t, "fail", err.Error())
}

func TestRunnerStopOnExit(t *testing.T) {
	r := NewRunner()
	r.StopOnExit = true
	r.Go(
		RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		RunFunc(func(context.Context) error { return nil }),
	)
	require.NoError(t, r.Wait())
}

func TestRunnerCollectsEveryError(t *testing.T) {
	r := NewRunner()
	first, second := errors.New("first"), errors.New("second")
	gate := make(chan struct{})
	r.Go(
		RunFunc(func(context.Context) error { return first }),
		RunFunc(func(context.Context) error {
			<-gate
			return second
		}),
		RunFunc(func(context.Context) error { return context.Canceled }),
	)
	close(gate)
	err := r.Wait()
	require.Error(t, err)
	require.ElementsMatch(t, []error{first, second}, err.(*AggregatedError).Errors)
	select {
	case <-r.Context.Done():
	default:
		t.Fatal("runner context still alive after Wait")
	}
}

func TestNameOf(t *testing.T) {
	fn := RunFunc(func(context.Context) error { return nil })
	require.Equal(t, "bridge", NameOf(NamedRun("bridge", fn), "#0"))
	require.Equal(t, "#3", NameOf(fn, "#3"))
}

type closer struct {
	ch chan struct{}
}

func (c *closer) Close() error {
	close(c.ch)
	return nil
}

func TestRunWithContextCloser(t *testing.T) {
	c := &closer{ch: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := RunWithContextCloser(ctx, c, func() error {
		<-c.ch
		return io.EOF
	})
	require.Equal(t, context.Canceled, err)

	c = &closer{ch: make(chan struct{})}
	err = RunWithContextCloser(context.Background(), c, func() error { return io.EOF })
	require.Equal(t, io.EOF, err)
	_, open := <-c.ch
	require.False(t, open)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	require.Equal(t, "", errs.Error())
	errs.Add(io.EOF, nil, io.ErrClosedPipe)
	require.Equal(t, "2 errors: EOF; io: read/write on closed pipe", errs.Aggregate().Error())
}
