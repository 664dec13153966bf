package svcboot

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"
)

// ABIVersion is the version of the boundary contract between host and
// artifact. Hosts refuse artifacts that report another version.
const ABIVersion = 1

// EntrySymbol is the name of the single function every artifact exports.
// Its type must be func() *Entry.
const EntrySymbol = "CreateService"

// MaxNameLen is the maximum length of a service name.
const MaxNameLen = 128

// validName matches service names: a letter followed by letters, digits,
// underscores, hyphens or dots.
var validName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.\-]*$`)

// EntryFunc is the type of the exported EntrySymbol.
type EntryFunc = func() *Entry

// Entry is what an artifact hands to the host when EntrySymbol is invoked.
// Each call must return a new Entry; ownership passes to the caller.
type Entry struct {
	// ABIVersion must be set to the ABIVersion the artifact was built with.
	ABIVersion int

	// Name identifies the service for logs.
	Name string

	// Builder constructs the service once the host has a Factory and logger.
	Builder StateBuilder[Service]
}

// Validate checks that e can be bootstrapped by this host.
func (e *Entry) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: entry point returned nil", ErrInvalidEntry)
	}
	if e.ABIVersion != ABIVersion {
		return fmt.Errorf("%w: artifact=%d, host=%d", ErrABIMismatch, e.ABIVersion, ABIVersion)
	}
	if len(e.Name) > MaxNameLen {
		return fmt.Errorf("%w: name too long: %d bytes (max: %d)", ErrInvalidEntry, len(e.Name), MaxNameLen)
	}
	if !validName.MatchString(e.Name) {
		return fmt.Errorf("%w: name %q contains invalid characters", ErrInvalidEntry, e.Name)
	}
	if e.Builder == nil {
		return fmt.Errorf("%w: entry %q has no builder", ErrInvalidEntry, e.Name)
	}
	return nil
}

// Declare returns the Entry for a service built by builder. Artifacts export
// it from their main package:
//
//	func CreateService() *svcboot.Entry {
//	    return svcboot.Declare("hello", build)
//	}
//
//	func build(ctx context.Context, f svcboot.Factory, rt *svcboot.Runtime, log *zap.Logger) (*httpsvc.Service, error) {
//	    pool, err := postgres.Open(ctx, f, rt)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return httpsvc.New(newMux(pool), log), nil
//	}
func Declare[T Service](name string, builder StateBuilder[T]) *Entry {
	return &Entry{
		ABIVersion: ABIVersion,
		Name:       name,
		Builder:    Erase(builder),
	}
}

// DeclareStatic returns the Entry for a service that needs no resources.
// constructor runs when the host bootstraps the service and receives the
// logger the host injected.
func DeclareStatic[T Service](name string, constructor func(logger *zap.Logger) T) *Entry {
	return Declare(name, func(_ context.Context, _ Factory, _ *Runtime, logger *zap.Logger) (T, error) {
		return constructor(logger), nil
	})
}
