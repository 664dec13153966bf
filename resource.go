package svcboot

import "context"

// Pool sizing applied by every pooled resource adapter. It is fixed policy of
// the adapters and not configurable by services.
const (
	PoolMinConns = 1
	PoolMaxConns = 5
)

// ResourceGetter turns a Factory answer into a usable resource of type T.
//
// Some resources cannot be handed across from the caller's goroutines to the
// service: a connection pool keeps background workers that must live as long
// as the deployment. Getters therefore do the construction work on rt (see
// RunOn) so the resource is tied to the deployment's Runtime.
//
// Getters are mainly consumed by state builders and are rarely implemented by
// services themselves; see the resource/postgres and resource/sqlite packages.
type ResourceGetter[T any] interface {
	GetResource(ctx context.Context, f Factory, rt *Runtime) (T, error)
}

// ResourceGetterFunc adapts a function to ResourceGetter.
type ResourceGetterFunc[T any] func(ctx context.Context, f Factory, rt *Runtime) (T, error)

// GetResource calls fn.
func (fn ResourceGetterFunc[T]) GetResource(ctx context.Context, f Factory, rt *Runtime) (T, error) {
	return fn(ctx, f, rt)
}

// GetResource obtains a resource of type T through g. Errors that g did not
// classify are reported as KindResource.
//
// Example:
//
//	pool, err := svcboot.GetResource[*pgxpool.Pool](ctx, factory, rt, postgres.Pool{})
func GetResource[T any](ctx context.Context, f Factory, rt *Runtime, g ResourceGetter[T]) (T, error) {
	res, err := g.GetResource(ctx, f, rt)
	if err != nil {
		var zero T
		return zero, Wrap(KindResource, "get resource", err)
	}
	return res, nil
}

// SQLConnectionString asks f for a SQL connection string, classifying a
// failure as KindProvision.
func SQLConnectionString(ctx context.Context, f Factory) (string, error) {
	dsn, err := f.SQLConnectionString(ctx)
	if err != nil {
		return "", Wrap(KindProvision, "sql connection string", err)
	}
	return dsn, nil
}
