// Package svcboot loads compiled network services into a host process,
// provisions the resources they ask for, and binds them to an address.
//
// # Overview
//
// A service is written as a Go plugin (go build -buildmode=plugin) that
// exports one function, CreateService, returning an *Entry. The host:
//
//   - opens the artifact and claims its Entry (Loader)
//   - wraps the Entry's builder in a Bootstrapper
//   - runs the builder with a Factory and a logger (Bootstrap)
//   - spawns the service's Bind on the deployment's Runtime (IntoHandle)
//
// The host keeps the returned ServeHandle to wait for or cancel the service.
//
// # Plugin Side
//
//	package main
//
//	func CreateService() *svcboot.Entry {
//	    return svcboot.Declare("hello", build)
//	}
//
//	func build(ctx context.Context, f svcboot.Factory, rt *svcboot.Runtime, log *zap.Logger) (*httpsvc.Service, error) {
//	    db, err := sqlite.Open(ctx, f, rt)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return httpsvc.New(newMux(db), log), nil
//	}
//
// # Host Side
//
//	factory, err := provision.NewLocal(dataDir, deploymentID)
//	if err != nil {
//	    return err
//	}
//	handle, err := svcboot.Deploy(ctx, svcboot.DeployConfig{
//	    Artifact: "./hello.so",
//	    Addr:     ":8000",
//	    Factory:  factory,
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer handle.Cancel()
//	return handle.Wait(ctx)
//
// # Errors
//
// Every failure surfaces as an *Error whose Kind tells which step failed:
// provisioning, runtime submission, resource construction, build, bind, or
// load. The original cause is always reachable through errors.Is/As.
package svcboot
