package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	svcboot "github.com/masegraye/svcboot-go"
	"github.com/masegraye/svcboot-go/resource/sqlite"
	"github.com/masegraye/svcboot-go/secrets"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLocal_Validation(t *testing.T) {
	tests := []struct {
		name         string
		dir          string
		deploymentID string
	}{
		{name: "empty dir", dir: "", deploymentID: "svc"},
		{name: "empty id", dir: "data", deploymentID: ""},
		{name: "path traversal", dir: "data", deploymentID: "../escape"},
		{name: "separator", dir: "data", deploymentID: "a/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLocal(tt.dir, tt.deploymentID)
			if !errors.Is(err, svcboot.ErrInvalidConfig) {
				t.Errorf("NewLocal() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLocal_ProvisionsOnFirstRequest(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")
	core, logs := observer.New(zap.InfoLevel)

	local, err := NewLocal(dir, "hello-1", WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	defer local.Close()

	if _, err := os.Stat(local.Path()); !os.IsNotExist(err) {
		t.Fatalf("Expected no database before first request, stat err = %v", err)
	}

	dsn, err := local.SQLConnectionString(ctx)
	if err != nil {
		t.Fatalf("SQLConnectionString failed: %v", err)
	}
	if !strings.HasPrefix(dsn, local.Path()) {
		t.Errorf("DSN %q does not name %q", dsn, local.Path())
	}
	if _, err := os.Stat(local.Path()); err != nil {
		t.Errorf("Expected database file to exist: %v", err)
	}

	again, err := local.SQLConnectionString(ctx)
	if err != nil || again != dsn {
		t.Errorf("second SQLConnectionString() = %q, %v; want %q", again, err, dsn)
	}
	if n := logs.FilterMessage("deployment database ready").Len(); n != 1 {
		t.Errorf("provisioned %d times, want 1", n)
	}

	// The DSN is usable by the sqlite resource adapter.
	db, err := sqlite.OpenDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenDSN failed: %v", err)
	}
	db.Close()
}

func TestLocal_SameDeploymentSameDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first, err := NewLocal(dir, "svc")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.PutSecret(ctx, "api-key", "s3cret"); err != nil {
		t.Fatalf("PutSecret failed: %v", err)
	}
	first.Close()

	second, err := NewLocal(dir, "svc")
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	v, err := second.Secret(ctx, "api-key")
	if err != nil || v != "s3cret" {
		t.Errorf("Secret() = %q, %v; want s3cret", v, err)
	}

	other, err := NewLocal(dir, "other")
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()

	if _, err := other.Secret(ctx, "api-key"); !errors.Is(err, secrets.ErrNotFound) {
		t.Errorf("other deployment Secret() = %v, want ErrNotFound", err)
	}
}

func TestLocal_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	local, err := NewLocal(file, "svc")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := local.SQLConnectionString(context.Background()); err == nil {
		t.Error("Expected provisioning to fail when data dir is a file")
	}
}
