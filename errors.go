package svcboot

import (
	"errors"
	"fmt"
)

// Common errors returned by svcboot operations.
var (
	// ErrRuntimeClosed is returned when work is submitted to a closed Runtime.
	ErrRuntimeClosed = errors.New("runtime is closed")

	// ErrSymbolNotFound is returned when an artifact does not export EntrySymbol.
	ErrSymbolNotFound = errors.New("entry symbol not found")

	// ErrBadSymbol is returned when the exported entry symbol has the wrong type.
	ErrBadSymbol = errors.New("entry symbol has wrong type")

	// ErrABIMismatch is returned when an artifact was built against another ABI version.
	ErrABIMismatch = errors.New("abi version mismatch")

	// ErrInvalidEntry is returned when the entry point returns an unusable Entry.
	ErrInvalidEntry = errors.New("invalid entry")

	// ErrAlreadyLoaded is returned when a Loader is asked to load the same artifact twice.
	ErrAlreadyLoaded = errors.New("artifact already loaded")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoService is returned when a builder reports success without a service.
	ErrNoService = errors.New("builder returned no service")

	// ErrTaskExited is returned when a task's goroutine exited without
	// returning, e.g. through runtime.Goexit or a Fatal log entry.
	ErrTaskExited = errors.New("task exited without returning")
)

// Kind classifies where in the load → build → bind sequence an error happened.
type Kind int

const (
	// KindProvision is a Factory failure (backend unreachable, quota exceeded).
	KindProvision Kind = iota + 1

	// KindRuntime is a cross-runtime submission failure: the runtime rejected
	// the task, the task panicked, or the waiter gave up.
	KindRuntime

	// KindResource is a failure constructing a resource from a factory answer.
	KindResource

	// KindBuild is a StateBuilder failure.
	KindBuild

	// KindBind is a Service.Bind failure.
	KindBind

	// KindCanceled means the serve task was cancelled through its handle.
	KindCanceled

	// KindLoad is a failure opening or validating an artifact.
	KindLoad
)

func (k Kind) String() string {
	switch k {
	case KindProvision:
		return "provision"
	case KindRuntime:
		return "runtime"
	case KindResource:
		return "resource"
	case KindBuild:
		return "build"
	case KindBind:
		return "bind"
	case KindCanceled:
		return "canceled"
	case KindLoad:
		return "load"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Kind sentinels for use with errors.Is:
//
//	if errors.Is(err, svcboot.ErrResource) { ... }
var (
	ErrProvision = &Error{Kind: KindProvision}
	ErrRuntime   = &Error{Kind: KindRuntime}
	ErrResource  = &Error{Kind: KindResource}
	ErrBuild     = &Error{Kind: KindBuild}
	ErrBind      = &Error{Kind: KindBind}
	ErrCanceled  = &Error{Kind: KindCanceled}
	ErrLoad      = &Error{Kind: KindLoad}
)

// Error is the single error type surfaced by Bootstrapper, GetResource,
// ServeHandle and Loader. The original cause is kept in Err.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	if e.Op != "" {
		msg = e.Op + ": "
	}
	msg += e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a kind sentinel (an *Error without Op or Err)
// of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// KindOf returns the Kind of the outermost *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Wrap classifies err as kind under op. An err that already carries a
// classification is returned unchanged so the innermost Kind wins.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
