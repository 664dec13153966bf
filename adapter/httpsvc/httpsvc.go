// Package httpsvc adapts an http.Handler (plain handlers, Connect handlers,
// gRPC-Web) to the svcboot.Service contract.
package httpsvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	svcboot "github.com/masegraye/svcboot-go"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ErrAlreadyBound is returned when Bind is called on a spent Service.
var ErrAlreadyBound = errors.New("httpsvc: service already bound")

// Option configures a Service.
type Option func(*Service)

// WithShutdownTimeout bounds how long in-flight requests may drain once the
// bind context is cancelled.
// Default: 5 seconds
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.shutdownTimeout = d
	}
}

// WithoutH2C disables HTTP/2 over cleartext.
func WithoutH2C() Option {
	return func(s *Service) {
		s.h2c = false
	}
}

// Service serves an http.Handler.
type Service struct {
	handler         http.Handler
	logger          *zap.Logger
	shutdownTimeout time.Duration
	h2c             bool
	bound           atomic.Bool
}

var _ svcboot.Service = (*Service)(nil)

// New creates a Service for handler. Server errors are logged through logger;
// net/http never writes to the process log on its own.
func New(handler http.Handler, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		handler:         handler,
		logger:          logger,
		shutdownTimeout: 5 * time.Second,
		h2c:             true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind listens on addr and serves until ctx is cancelled.
func (s *Service) Bind(ctx context.Context, addr string) error {
	if s.bound.Swap(true) {
		return ErrAlreadyBound
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

// Serve serves on an existing listener until ctx is cancelled. The listener
// is closed on return.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	if s.bound.Swap(true) {
		ln.Close()
		return ErrAlreadyBound
	}
	return s.serve(ctx, ln)
}

func (s *Service) serve(ctx context.Context, ln net.Listener) error {
	handler := s.handler
	if s.h2c {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	srv := &http.Server{
		Handler:  handler,
		ErrorLog: zap.NewStdLog(s.logger.Named("http")),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	s.logger.Info("http service listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		return s.shutdown(srv, errCh)
	}
}

// shutdown drains the server for at most shutdownTimeout, then closes it.
func (s *Service) shutdown(srv *http.Server, errCh <-chan error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown timed out, closing", zap.Error(err))
		srv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	s.logger.Info("http service stopped")
	return nil
}
