// Package grpcsvc adapts a *grpc.Server to the svcboot.Service contract.
package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	svcboot "github.com/masegraye/svcboot-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/grpclog"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ErrAlreadyBound is returned when Bind is called on a spent Service.
var ErrAlreadyBound = errors.New("grpcsvc: service already bound")

// Service serves a *grpc.Server together with the standard health service.
type Service struct {
	server      *grpc.Server
	health      *health.Server
	logger      *zap.Logger
	stopTimeout time.Duration
	bound       atomic.Bool
}

var _ svcboot.Service = (*Service)(nil)

// RouteLogs sends gRPC's internal logs to logger. gRPC keeps one logger per
// process, so this belongs to the host: call it once at startup, before any
// gRPC server or client is created. Services never call it, and their own
// loggers only receive what the Service itself logs.
func RouteLogs(logger *zap.Logger) {
	grpclog.SetLoggerV2(zapgrpc.NewLogger(logger.Named("grpc")))
}

// New wraps server and registers the gRPC health service on it. server must
// not have been started.
func New(server *grpc.Server, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	return &Service{
		server:      server,
		health:      healthServer,
		logger:      logger,
		stopTimeout: 5 * time.Second,
	}
}

// Health returns the health server so services can report per-service status.
func (s *Service) Health() *health.Server {
	return s.health
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

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.logger.Info("grpc service listening", zap.String("addr", ln.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.server.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.stop()
		return serveResult(<-serveErr)
	case err := <-serveErr:
		s.health.Shutdown()
		return serveResult(err)
	}
}

// stop drains in-flight RPCs for at most stopTimeout, then stops hard.
func (s *Service) stop() {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		s.logger.Warn("grpc graceful stop timed out, stopping")
		s.server.Stop()
		<-done
	}
	s.logger.Info("grpc service stopped")
}

func serveResult(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("serve gRPC: %w", err)
}
