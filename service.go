package svcboot

import "context"

// Service is the lifecycle contract every loadable plugin type implements.
//
// Bind is called exactly once per deployment attempt, by the Bootstrapper, on
// a goroutine owned by the deployment's Runtime. After Bind is invoked the
// service is spent and no further calls are made on it.
//
// Implementations must:
//   - listen on exactly addr
//   - never install process signal handlers (the host owns shutdown)
//   - route framework logging through the logger they were built with
//   - stop serving when ctx is cancelled
//   - return an error wrapping the underlying cause if binding or serving fails
type Service interface {
	Bind(ctx context.Context, addr string) error
}

// ServiceFunc adapts a plain function to the Service interface.
type ServiceFunc func(ctx context.Context, addr string) error

// Bind calls f(ctx, addr).
func (f ServiceFunc) Bind(ctx context.Context, addr string) error {
	return f(ctx, addr)
}
