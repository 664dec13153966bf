// Package svcbootfx runs a svcboot deployment inside an fx application.
package svcbootfx

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	svcboot "github.com/masegraye/svcboot-go"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Params are the dependencies DeployModule takes from the graph. They fill
// in DeployConfig fields left empty.
type Params struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger     `optional:"true"`
	Factory    svcboot.Factory `optional:"true"`
	Loader     *svcboot.Loader `optional:"true"`
}

// Deployment is the running deployment. Its handle is available once the
// application has started.
type Deployment struct {
	cfg        svcboot.DeployConfig
	shutdowner fx.Shutdowner

	mu      sync.Mutex
	handle  *svcboot.ServeHandle
	stopped atomic.Bool
}

// Handle returns the serve handle, or nil before start.
func (d *Deployment) Handle() *svcboot.ServeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle
}

// DeployModule deploys cfg on fx.OnStart and cancels it on fx.OnStop.
// If the service stops serving on its own, the application is shut down
// with exit code 1.
//
//	fx.New(
//	    fx.Supply(logger),
//	    fx.Provide(func() svcboot.Factory { return factory }),
//	    svcbootfx.DeployModule(svcboot.DeployConfig{Artifact: "hello.so", Addr: ":8000"}),
//	)
func DeployModule(cfg svcboot.DeployConfig) fx.Option {
	return fx.Module("svcboot",
		fx.Provide(func(p Params) *Deployment {
			return newDeployment(cfg, p)
		}),
		fx.Invoke(func(*Deployment) {}),
	)
}

// ZapEvents routes fx's own event log into the graph's *zap.Logger.
func ZapEvents() fx.Option {
	return fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: logger.Named("fx")}
	})
}

func newDeployment(cfg svcboot.DeployConfig, p Params) *Deployment {
	if cfg.Logger == nil {
		cfg.Logger = p.Logger
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Factory == nil {
		cfg.Factory = p.Factory
	}
	if cfg.Loader == nil {
		cfg.Loader = p.Loader
	}

	d := &Deployment{
		cfg:        cfg,
		shutdowner: p.Shutdowner,
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: d.start,
		OnStop:  d.stop,
	})
	return d
}

func (d *Deployment) start(ctx context.Context) error {
	handle, err := svcboot.Deploy(ctx, d.cfg)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.handle = handle
	d.mu.Unlock()

	go d.watch(handle)
	return nil
}

// watch shuts the application down when the service stops serving before
// OnStop asked it to.
func (d *Deployment) watch(handle *svcboot.ServeHandle) {
	<-handle.Done()
	if d.stopped.Load() {
		return
	}

	err := handle.Err()
	if errors.Is(err, svcboot.ErrCanceled) {
		return
	}
	d.cfg.Logger.Error("service stopped serving", zap.Error(err))
	if err := d.shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
		d.cfg.Logger.Warn("shutdown request failed", zap.Error(err))
	}
}

func (d *Deployment) stop(ctx context.Context) error {
	d.stopped.Store(true)

	handle := d.Handle()
	if handle == nil {
		return nil
	}
	select {
	case <-handle.Done():
		// Stopped serving on its own; watch already reported it.
		return nil
	default:
	}
	handle.Cancel()

	err := handle.Wait(ctx)
	if err == nil || errors.Is(err, svcboot.ErrCanceled) {
		return nil
	}
	return err
}
