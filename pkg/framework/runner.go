package framework

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives
// before every Runnable has returned.
var ErrForcedExit = errors.New("forced exit")

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun attaches name to runnable for logging.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

// NameOf returns the name of a Named runnable, or fallback.
func NameOf(runnable Runnable, fallback string) string {
	if named, ok := runnable.(Named); ok {
		return named.Name()
	}
	return fallback
}

// Runner starts Runnables in their own goroutines under one cancelable
// context and gathers what they return. Errors other than
// context.Canceled end up in the AggregatedError from Wait, in the order
// the Runnables returned.
type Runner struct {
	Context context.Context
	// StopOnExit cancels Context as soon as any Runnable returns.
	StopOnExit bool

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started int

	lock sync.Mutex
	errs AggregatedError

	forced     chan struct{}
	forcedOnce sync.Once
}

// NewRunner creates a runner on context.Background.
func NewRunner() *Runner {
	return NewRunnerWith(context.Background())
}

// NewRunnerWith creates a runner whose context derives from ctx.
func NewRunnerWith(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{Context: ctx, cancel: cancel, forced: make(chan struct{})}
}

// HandleSignals stops the runner on SIGINT or SIGTERM. A second signal
// makes Wait return ErrForcedExit without waiting further.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		glog.Infof("%v: stopping", sig)
		r.Stop()
		sig = <-sigCh
		glog.Errorf("%v: stopping again, giving up on graceful stop", sig)
		r.forcedOnce.Do(func() { close(r.forced) })
	}()
	return r
}

// Go starts runnables on the runner context.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	return r.GoWith(r.Context, runnables...)
}

// GoWith starts runnables on ctx. Stop and StopOnExit only reach them
// when ctx derives from the runner context.
func (r *Runner) GoWith(ctx context.Context, runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := NameOf(runnable, fmt.Sprintf("#%d", r.started))
		r.started++
		r.wg.Add(1)
		go r.run(ctx, runnable, name)
	}
	return r
}

func (r *Runner) run(ctx context.Context, runnable Runnable, name string) {
	defer r.wg.Done()
	glog.V(4).Infof("run %s", name)
	err := runnable.Run(ctx)
	switch {
	case err == nil || err == context.Canceled:
		glog.V(4).Infof("%s returned", name)
	default:
		glog.Errorf("%s: %v", name, err)
		r.lock.Lock()
		r.errs.Add(err)
		r.lock.Unlock()
	}
	if r.StopOnExit {
		r.Stop()
	}
}

// Stop cancels the runner context.
func (r *Runner) Stop() {
	r.cancel()
}

// Wait blocks until every started Runnable has returned, then releases the
// runner context.
func (r *Runner) Wait() error {
	defer r.Stop()
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-r.forced:
		return ErrForcedExit
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.errs.Aggregate()
}
