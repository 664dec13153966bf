package provision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	svcboot "github.com/masegraye/svcboot-go"
	"github.com/masegraye/svcboot-go/secrets"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully-qualified name of the provisioner service.
	ServiceName = "svcboot.provision.v1.ProvisionerService"

	// SQLConnectionStringProcedure is the procedure for SQLConnectionString.
	SQLConnectionStringProcedure = "/" + ServiceName + "/SQLConnectionString"

	// SecretProcedure is the procedure for Secret.
	SecretProcedure = "/" + ServiceName + "/Secret"
)

// NewHandler serves factory as the provisioner service. It returns the path
// to mount the handler on.
//
// Missing secrets are reported as NotFound; every other factory failure is
// reported as Unavailable.
func NewHandler(factory svcboot.Factory, opts ...connect.HandlerOption) (string, http.Handler) {
	h := &handler{factory: factory}
	dsn := connect.NewUnaryHandler(SQLConnectionStringProcedure, h.sqlConnectionString, opts...)
	secret := connect.NewUnaryHandler(SecretProcedure, h.secret, opts...)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SQLConnectionStringProcedure:
			dsn.ServeHTTP(w, r)
		case SecretProcedure:
			secret.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

type handler struct {
	factory svcboot.Factory
}

func (h *handler) sqlConnectionString(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.StringValue], error) {
	dsn, err := h.factory.SQLConnectionString(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.String(dsn)), nil
}

func (h *handler) secret(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.StringValue], error) {
	key := req.Msg.GetValue()
	if key == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("secret key is required"))
	}
	value, err := h.factory.Secret(ctx, key)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.String(value)), nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeUnavailable, err)
	}
}

// Client is a svcboot.Factory backed by a remote provisioner. Calls are
// never retried.
type Client struct {
	dsn    *connect.Client[emptypb.Empty, wrapperspb.StringValue]
	secret *connect.Client[wrapperspb.StringValue, wrapperspb.StringValue]
}

var _ svcboot.Factory = (*Client)(nil)

// NewClient creates a client for the provisioner at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		dsn: connect.NewClient[emptypb.Empty, wrapperspb.StringValue](
			httpClient, baseURL+SQLConnectionStringProcedure, opts...),
		secret: connect.NewClient[wrapperspb.StringValue, wrapperspb.StringValue](
			httpClient, baseURL+SecretProcedure, opts...),
	}
}

// SQLConnectionString implements svcboot.Factory.
func (c *Client) SQLConnectionString(ctx context.Context) (string, error) {
	resp, err := c.dsn.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return "", fromConnectError("sql connection string", err)
	}
	return resp.Msg.GetValue(), nil
}

// Secret implements svcboot.Factory. A missing key matches secrets.ErrNotFound.
func (c *Client) Secret(ctx context.Context, key string) (string, error) {
	resp, err := c.secret.CallUnary(ctx, connect.NewRequest(wrapperspb.String(key)))
	if err != nil {
		return "", fromConnectError("secret "+key, err)
	}
	return resp.Msg.GetValue(), nil
}

func fromConnectError(op string, err error) error {
	if connect.CodeOf(err) == connect.CodeNotFound {
		return fmt.Errorf("provisioner %s: %w: %w", op, secrets.ErrNotFound, err)
	}
	return fmt.Errorf("provisioner %s: %w", op, err)
}
