package svcboot

import (
	"context"
	"errors"
)

// ServeHandle tracks the in-flight bind-and-serve task of a deployment.
//
// The task runs independently of whoever holds the handle. Wait resolves
// with nil when Bind returns cleanly, a KindBind error when Bind fails, and a
// KindCanceled error when the task was stopped through Cancel.
type ServeHandle struct {
	addr   string
	cancel context.CancelFunc
	task   *Task[struct{}]
}

// Addr returns the address the service was asked to bind.
func (h *ServeHandle) Addr() string {
	return h.addr
}

// Done is closed once the serve task has finished.
func (h *ServeHandle) Done() <-chan struct{} {
	return h.task.Done()
}

// Cancel stops the serve task. In-flight connections are drained only as far
// as the service's own shutdown does. Cancel does not wait; use Wait or Done.
func (h *ServeHandle) Cancel() {
	h.cancel()
}

// Wait blocks until the serve task finishes or ctx is done. If ctx ends
// first the task keeps running and a KindRuntime error is returned.
func (h *ServeHandle) Wait(ctx context.Context) error {
	select {
	case <-h.task.Done():
		return h.Err()
	case <-ctx.Done():
		return &Error{Kind: KindRuntime, Op: "serve", Err: &JoinError{Err: ctx.Err()}}
	}
}

// Err returns the task's result once Done is closed, and nil before.
func (h *ServeHandle) Err() error {
	select {
	case <-h.task.Done():
	default:
		return nil
	}
	return h.result()
}

func (h *ServeHandle) result() error {
	_, err := h.task.Wait(context.Background())
	if err == nil {
		return nil
	}

	var joinErr *JoinError
	if errors.As(err, &joinErr) {
		return &Error{Kind: KindRuntime, Op: "serve", Err: err}
	}
	return err
}

// serve runs svc.Bind on rt and returns the handle for it.
func serve(rt *Runtime, svc Service, addr string) *ServeHandle {
	ctx, cancel := context.WithCancel(rt.Context())

	task := Spawn(rt, func(context.Context) (struct{}, error) {
		err := svc.Bind(ctx, addr)
		if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
			return struct{}{}, &Error{Kind: KindCanceled, Op: "serve", Err: context.Canceled}
		}
		if err != nil {
			return struct{}{}, Wrap(KindBind, "bind "+addr, err)
		}
		return struct{}{}, nil
	})

	return &ServeHandle{
		addr:   addr,
		cancel: cancel,
		task:   task,
	}
}
