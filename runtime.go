package svcboot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
)

// Runtime is the execution context owned by one deployment.
//
// Resources that hold background goroutines (connection pools, health
// checkers) are created on the Runtime so that their lifetime is bound to the
// Runtime's context rather than to whichever caller happened to build them.
// A Runtime starts with a context detached from any caller and is only torn
// down by Close. Once a deployment is bound, its Runtime is retained for the
// rest of the process and Close becomes a no-op.
type Runtime struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	retained bool

	active atomic.Int64
}

// NewRuntime creates a Runtime ready to accept tasks.
func NewRuntime() *Runtime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the Runtime's context. It is cancelled only by Close.
func (rt *Runtime) Context() context.Context {
	return rt.ctx
}

// Active returns the number of tasks currently running on the Runtime.
func (rt *Runtime) Active() int {
	return int(rt.active.Load())
}

// Closed reports whether Close has torn the Runtime down.
func (rt *Runtime) Closed() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.closed
}

// Close cancels the Runtime's context and rejects further tasks.
// Close is safe to call multiple times and does nothing on a retained Runtime.
func (rt *Runtime) Close() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.closed || rt.retained {
		return
	}
	rt.closed = true
	rt.cancel()
}

// retain ties the Runtime's lifetime to the process.
func (rt *Runtime) retain() {
	rt.mu.Lock()
	rt.retained = true
	rt.mu.Unlock()

	retainedMu.Lock()
	retained = append(retained, rt)
	retainedMu.Unlock()
}

var (
	retainedMu sync.Mutex
	retained   []*Runtime
)

// RetainedRuntimes returns how many Runtimes have been retained for the
// lifetime of the process by bound deployments.
func RetainedRuntimes() int {
	retainedMu.Lock()
	defer retainedMu.Unlock()
	return len(retained)
}

// JoinError reports that a task never produced a result: the Runtime
// rejected it, the task panicked, or the waiter stopped waiting.
type JoinError struct {
	// Panic holds the recovered panic, if the task panicked.
	Panic *panics.Recovered

	// Err is the cause: ErrRuntimeClosed, the waiter's context error, or the
	// panic converted to an error.
	Err error
}

func (e *JoinError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("task panicked: %v", e.Panic.Value)
	}
	return fmt.Sprintf("task failed to join: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *JoinError) Unwrap() error {
	return e.Err
}

// Task is a unit of work running on a Runtime.
type Task[T any] struct {
	done    chan struct{}
	val     T
	err     error
	joinErr *JoinError
}

// Spawn submits fn to run on rt. fn receives the Runtime's context.
// Submission to a closed Runtime yields a Task that resolves immediately with
// a *JoinError wrapping ErrRuntimeClosed.
func Spawn[T any](rt *Runtime, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}

	rt.mu.Lock()
	if rt.closed {
		rt.mu.Unlock()
		t.joinErr = &JoinError{Err: ErrRuntimeClosed}
		close(t.done)
		return t
	}
	rt.active.Add(1)
	rt.mu.Unlock()

	go func() {
		returned := false
		defer func() {
			if !returned {
				t.joinErr = &JoinError{Err: ErrTaskExited}
			}
			rt.active.Add(-1)
			close(t.done)
		}()

		var pc panics.Catcher
		pc.Try(func() {
			t.val, t.err = fn(rt.ctx)
		})
		if r := pc.Recovered(); r != nil {
			var zero T
			t.val, t.err = zero, nil
			t.joinErr = &JoinError{Panic: r, Err: r.AsError()}
		}
		returned = true
	}()

	return t
}

// Done is closed once the task has finished.
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
//
// A *JoinError is returned when the task produced no result; otherwise the
// task's own value and error are returned unchanged. If ctx ends first the
// task keeps running on its Runtime and its result is discarded.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		var zero T
		return zero, &JoinError{Err: ctx.Err()}
	}

	if t.joinErr != nil {
		var zero T
		return zero, t.joinErr
	}
	return t.val, t.err
}

// RunOn runs fn on rt and waits for it, classifying failures: a submission
// failure is returned as KindRuntime, an error from fn as KindResource.
// Both keep the original cause.
//
// If ctx ends before fn returns, fn keeps running; a value it later
// produces has no owner and is closed if it implements Close.
func RunOn[T any](ctx context.Context, rt *Runtime, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	task := Spawn(rt, fn)
	val, err := task.Wait(ctx)
	if err == nil {
		return val, nil
	}

	var joinErr *JoinError
	if errors.As(err, &joinErr) {
		select {
		case <-task.Done():
		default:
			go discard(task)
		}
		return val, &Error{Kind: KindRuntime, Op: op, Err: err}
	}
	return val, Wrap(KindResource, op, err)
}

// discard waits for an abandoned task and releases its result.
func discard[T any](t *Task[T]) {
	<-t.Done()
	if t.joinErr != nil || t.err != nil {
		return
	}
	switch c := any(t.val).(type) {
	case io.Closer:
		_ = c.Close()
	case interface{ Close() }:
		c.Close()
	}
}
