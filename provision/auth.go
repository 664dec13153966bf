package provision

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"connectrpc.com/connect"
)

// TokenAuth authenticates provisioner calls with a shared bearer token.
type TokenAuth struct {
	// Token is sent by clients and expected by servers.
	Token string

	// Header carries the token. Default: "Authorization".
	Header string

	// Prefix precedes the token in Header. Default: "Bearer ".
	Prefix string
}

// NewTokenAuth creates a TokenAuth using the Authorization header.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{
		Token:  token,
		Header: "Authorization",
		Prefix: "Bearer ",
	}
}

// ClientInterceptor adds the token to outgoing requests.
func (t *TokenAuth) ClientInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if t.Token != "" {
				req.Header().Set(t.Header, t.Prefix+t.Token)
			}
			return next(ctx, req)
		}
	}
}

// ServerInterceptor rejects requests that do not carry the token.
func (t *TokenAuth) ServerInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if t.Token == "" {
				return nil, connect.NewError(connect.CodeInternal, errors.New("token not configured"))
			}

			header := req.Header().Get(t.Header)
			if header == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated,
					fmt.Errorf("missing %s header", t.Header))
			}
			if !strings.HasPrefix(header, t.Prefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated,
					fmt.Errorf("invalid token format, expected %q prefix", t.Prefix))
			}

			token := strings.TrimPrefix(header, t.Prefix)
			if subtle.ConstantTimeCompare([]byte(token), []byte(t.Token)) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid token"))
			}
			return next(ctx, req)
		}
	}
}
