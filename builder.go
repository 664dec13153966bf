package svcboot

import (
	"context"
	"reflect"

	"go.uber.org/zap"
)

// StateBuilder constructs a ready-to-serve service. It receives the
// deployment's Factory, the Runtime resources must be created on, and the
// logger the service must use. A StateBuilder is called at most once.
type StateBuilder[T Service] func(ctx context.Context, f Factory, rt *Runtime, logger *zap.Logger) (T, error)

// Erase converts a StateBuilder for a concrete service type into one that
// returns the Service interface, as stored in an Entry.
func Erase[T Service](b StateBuilder[T]) StateBuilder[Service] {
	if b == nil {
		return nil
	}
	return func(ctx context.Context, f Factory, rt *Runtime, logger *zap.Logger) (Service, error) {
		svc, err := b(ctx, f, rt, logger)
		if err != nil {
			return nil, err
		}
		if isNilService(svc) {
			return nil, ErrNoService
		}
		return svc, nil
	}
}

// isNilService reports whether svc is nil or an interface holding a nil
// pointer, map, slice, func or chan.
func isNilService(svc Service) bool {
	if svc == nil {
		return true
	}
	v := reflect.ValueOf(svc)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Binder is invoked exactly once by IntoHandle, after the serve task has been
// spawned, to signal the host that the service is bound.
type Binder func()
