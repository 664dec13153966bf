package svcbootfx

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"plugin"
	"testing"
	"time"

	svcboot "github.com/masegraye/svcboot-go"
	"github.com/masegraye/svcboot-go/adapter/httpsvc"
	"github.com/masegraye/svcboot-go/provision"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type fakeModule map[string]plugin.Symbol

func (m fakeModule) Lookup(name string) (plugin.Symbol, error) {
	sym, ok := m[name]
	if !ok {
		return nil, errors.New("symbol not found")
	}
	return sym, nil
}

func helloLoader() *svcboot.Loader {
	entry := svcboot.EntryFunc(func() *svcboot.Entry {
		return svcboot.Declare("hello", func(ctx context.Context, f svcboot.Factory, rt *svcboot.Runtime, logger *zap.Logger) (*httpsvc.Service, error) {
			mux := http.NewServeMux()
			mux.HandleFunc("/hello", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("hello"))
			})
			return httpsvc.New(mux, logger, httpsvc.WithShutdownTimeout(time.Second)), nil
		})
	})
	return svcboot.NewLoader(svcboot.WithOpener(func(path string) (svcboot.Module, error) {
		if path != "hello.so" {
			return nil, errors.New("no such file")
		}
		return fakeModule{svcboot.EntrySymbol: entry}, nil
	}))
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func get(t *testing.T, url string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return string(body)
		}
		if time.Now().After(deadline) {
			t.Fatalf("GET %s: %v", url, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestDeployModule(t *testing.T) {
	addr := freeAddr(t)
	var dep *Deployment

	app := fxtest.New(t,
		fx.Supply(zap.NewNop()),
		fx.Provide(func() svcboot.Factory { return &provision.Static{} }),
		fx.Supply(helloLoader()),
		DeployModule(svcboot.DeployConfig{Artifact: "hello.so", Addr: addr}),
		fx.Populate(&dep),
	)

	if dep.Handle() != nil {
		t.Error("Expected no handle before start")
	}

	app.RequireStart()

	if body := get(t, "http://"+addr+"/hello"); body != "hello" {
		t.Errorf("body = %q, want hello", body)
	}

	handle := dep.Handle()
	if handle == nil {
		t.Fatal("Expected handle after start")
	}

	app.RequireStop()

	select {
	case <-handle.Done():
	default:
		t.Fatal("Expected serve task to be finished after stop")
	}
	if !errors.Is(handle.Err(), svcboot.ErrCanceled) {
		t.Errorf("Err() = %v, want canceled", handle.Err())
	}
}

func TestDeployModule_LoadFailureFailsStart(t *testing.T) {
	app := fxtest.New(t,
		fx.Provide(func() svcboot.Factory { return &provision.Static{} }),
		fx.Supply(helloLoader()),
		DeployModule(svcboot.DeployConfig{Artifact: "missing.so", Addr: "127.0.0.1:0"}),
	)

	err := app.Start(context.Background())
	if !errors.Is(err, svcboot.ErrLoad) {
		t.Errorf("Start() = %v, want load error", err)
	}
}

func TestDeployModule_BindFailureShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	app := fxtest.New(t,
		fx.Provide(func() svcboot.Factory { return &provision.Static{} }),
		fx.Supply(helloLoader()),
		DeployModule(svcboot.DeployConfig{Artifact: "hello.so", Addr: ln.Addr().String()}),
	)
	app.RequireStart()
	defer app.RequireStop()

	select {
	case sig := <-app.Wait():
		if sig.ExitCode != 1 {
			t.Errorf("ExitCode = %d, want 1", sig.ExitCode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected shutdown after bind failure")
	}
}
