package svcboot

import "context"

// Factory is implemented by the host to provision resources (databases,
// secrets) that a service asks for while it is being built.
//
// A Factory is handed to the StateBuilder for the duration of one
// Bootstrap call. Methods may be called any number of times, may perform
// network I/O and may create infrastructure as a side effect. Implementations
// must be idempotent per deployment attempt: asking twice for the same
// resource during one deployment yields the same resource.
type Factory interface {
	// SQLConnectionString declares that the service requires a SQL database
	// and returns the connection string of the provisioned database.
	SQLConnectionString(ctx context.Context) (string, error)

	// Secret returns the secret stored under key for this deployment.
	Secret(ctx context.Context, key string) (string, error)
}
