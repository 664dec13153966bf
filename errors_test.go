package svcboot

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsKind(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:5432: connect: connection refused")
	err := fmt.Errorf("get pool: %w", &Error{Kind: KindResource, Op: "postgres", Err: cause})

	if !errors.Is(err, ErrResource) {
		t.Error("Expected errors.Is(err, ErrResource)")
	}
	if errors.Is(err, ErrRuntime) {
		t.Error("Expected resource error not to match ErrRuntime")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable")
	}
	if KindOf(err) != KindResource {
		t.Errorf("KindOf() = %v, want %v", KindOf(err), KindResource)
	}
	if KindOf(cause) != 0 {
		t.Errorf("KindOf(plain) = %v, want 0", KindOf(cause))
	}
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindBind, Op: "bind :8000", Err: errors.New("address in use")}, "bind :8000: bind: address in use"},
		{&Error{Kind: KindBuild, Err: errors.New("boom")}, "build: boom"},
		{ErrCanceled, "canceled"},
		{&Error{Kind: Kind(99)}, "kind(99)"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestWrap_KeepsInnermostKind(t *testing.T) {
	inner := Wrap(KindProvision, "sql", errors.New("quota exceeded"))
	outer := Wrap(KindBuild, "bootstrap", fmt.Errorf("building state: %w", inner))

	if KindOf(outer) != KindProvision {
		t.Errorf("KindOf() = %v, want %v", KindOf(outer), KindProvision)
	}
	if Wrap(KindBuild, "x", nil) != nil {
		t.Error("Expected Wrap(nil) to be nil")
	}
}
