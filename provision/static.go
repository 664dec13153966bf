// Package provision implements svcboot.Factory: a static factory, a local
// factory that provisions per-deployment SQLite databases, and a Connect RPC
// handler and client that serve a factory over the network.
package provision

import (
	"context"
	"errors"
	"fmt"

	svcboot "github.com/masegraye/svcboot-go"
	"github.com/masegraye/svcboot-go/secrets"
)

// ErrNoDatabase is returned by factories that have no database to offer.
var ErrNoDatabase = errors.New("provision: no database configured")

// Static answers from fixed configuration. It never does I/O.
type Static struct {
	DSN     string
	Secrets map[string]string
}

var _ svcboot.Factory = (*Static)(nil)

// SQLConnectionString returns s.DSN.
func (s *Static) SQLConnectionString(ctx context.Context) (string, error) {
	if s.DSN == "" {
		return "", ErrNoDatabase
	}
	return s.DSN, nil
}

// Secret returns the configured value for key.
func (s *Static) Secret(ctx context.Context, key string) (string, error) {
	v, ok := s.Secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", secrets.ErrNotFound, key)
	}
	return v, nil
}
