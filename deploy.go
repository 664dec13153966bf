package svcboot

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DeployConfig describes a single load → build → bind deployment.
type DeployConfig struct {
	// Artifact is the path of the compiled plugin.
	// Required.
	Artifact string

	// Addr is the address the service binds.
	// Required. Examples: ":8000", "127.0.0.1:8000"
	Addr string

	// Factory provisions the resources the service asks for.
	// Required.
	Factory Factory

	// Logger is handed to the service's builder.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// Binder is called once the serve task has been spawned.
	// Optional.
	Binder Binder

	// Loader opens the artifact.
	// Default: NewLoader(WithLoaderLogger(Logger))
	Loader *Loader
}

// Validate checks DeployConfig for errors.
func (cfg *DeployConfig) Validate() error {
	if cfg.Artifact == "" {
		return fmt.Errorf("%w: Artifact is required", ErrInvalidConfig)
	}
	if cfg.Addr == "" {
		return fmt.Errorf("%w: Addr is required", ErrInvalidConfig)
	}
	if cfg.Factory == nil {
		return fmt.Errorf("%w: Factory is required", ErrInvalidConfig)
	}
	return nil
}

// Deploy loads cfg.Artifact, bootstraps it with cfg.Factory and binds it to
// cfg.Addr. Nothing is retried: the first failing step ends the attempt.
func Deploy(ctx context.Context, cfg DeployConfig) (*ServeHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Loader == nil {
		cfg.Loader = NewLoader(WithLoaderLogger(cfg.Logger))
	}

	artifact, err := cfg.Loader.Load(cfg.Artifact)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger.With(zap.String("service", artifact.Name()))
	boot := artifact.Bootstrapper(cfg.Binder)
	if err := boot.Bootstrap(ctx, cfg.Factory, logger); err != nil {
		return nil, err
	}

	handle, err := boot.IntoHandle(cfg.Addr)
	if err != nil {
		return nil, err
	}
	logger.Info("service bound", zap.String("addr", cfg.Addr))
	return handle, nil
}
