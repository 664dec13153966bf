package svcboot

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// State is the lifecycle state of a Bootstrapper.
type State int

const (
	// StateUnbuilt: builder present, service absent.
	StateUnbuilt State = iota

	// StateBuilt: builder consumed, service present.
	StateBuilt

	// StateBound: service consumed, handle returned.
	StateBound

	// StateFailed: the builder failed. The Bootstrapper is dead.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateBuilt:
		return "built"
	case StateBound:
		return "bound"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Bootstrapper sequences the construction and binding of one loaded service.
//
// The host calls Bootstrap exactly once and then IntoHandle exactly once.
// Calling either out of order is a programming error and panics. A
// Bootstrapper is driven by a single caller and does no locking.
type Bootstrapper struct {
	service Service
	builder StateBuilder[Service]
	runtime *Runtime
	binder  Binder
	state   State
	logger  *zap.Logger
}

// New creates a Bootstrapper for builder. binder may be nil.
func New(builder StateBuilder[Service], binder Binder) *Bootstrapper {
	if builder == nil {
		panic("svcboot: New called with nil builder")
	}
	return &Bootstrapper{
		builder: builder,
		runtime: NewRuntime(),
		binder:  binder,
		state:   StateUnbuilt,
		logger:  zap.NewNop(),
	}
}

// State returns the current lifecycle state.
func (b *Bootstrapper) State() State {
	return b.state
}

// Runtime returns the Runtime owned by this deployment.
func (b *Bootstrapper) Runtime() *Runtime {
	return b.runtime
}

// Bootstrap runs the builder with factory and logger and stores the built
// service. The builder is consumed before it runs, so it never runs twice,
// even when it fails. On failure the Bootstrapper is dead, its Runtime is
// closed and the error is returned.
func (b *Bootstrapper) Bootstrap(ctx context.Context, factory Factory, logger *zap.Logger) error {
	if b.state != StateUnbuilt {
		panic(fmt.Sprintf("svcboot: Bootstrap called in state %s", b.state))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b.logger = logger

	builder := b.builder
	b.builder = nil

	b.logger.Debug("building service")
	svc, err := builder(ctx, factory, b.runtime, logger)
	if err == nil && isNilService(svc) {
		err = ErrNoService
	}
	if err != nil {
		b.state = StateFailed
		b.runtime.Close()
		b.logger.Debug("build failed", zap.Error(err))
		return Wrap(KindBuild, "bootstrap", err)
	}

	b.service = svc
	b.state = StateBuilt
	b.logger.Debug("service built")
	return nil
}

// IntoHandle takes the built service, spawns a task on the deployment's
// Runtime that binds it to addr, calls the binder, and returns the handle.
// It fails only if the Runtime was closed from outside.
//
// The Runtime is retained for the lifetime of the process: resources created
// on it during Bootstrap must keep working for as long as the service runs,
// after this Bootstrapper is gone.
func (b *Bootstrapper) IntoHandle(addr string) (*ServeHandle, error) {
	if b.state != StateBuilt || b.service == nil {
		panic(fmt.Sprintf("svcboot: IntoHandle called in state %s", b.state))
	}

	svc := b.service
	b.service = nil

	if b.runtime.Closed() {
		b.state = StateFailed
		return nil, &Error{Kind: KindRuntime, Op: "into handle", Err: ErrRuntimeClosed}
	}
	b.state = StateBound

	handle := serve(b.runtime, svc, addr)
	b.logger.Debug("serve task spawned", zap.String("addr", addr))

	if b.binder != nil {
		b.binder()
	}

	b.runtime.retain()
	return handle, nil
}
