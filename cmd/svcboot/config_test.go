package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	svcboot "github.com/masegraye/svcboot-go"
	"github.com/masegraye/svcboot-go/provision"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func TestRunConfig_Validate(t *testing.T) {
	base := runConfig{Artifact: "hello.so", Addr: ":8000", DeploymentID: "hello"}

	tests := []struct {
		name    string
		mutate  func(c *runConfig)
		wantErr string
	}{
		{
			name:   "dsn",
			mutate: func(c *runConfig) { c.DSN = "postgres://db" },
		},
		{
			name:   "data dir",
			mutate: func(c *runConfig) { c.DataDir = "/var/lib/svcboot" },
		},
		{
			name:   "provisioner with token",
			mutate: func(c *runConfig) { c.Provisioner = "http://prov:9090"; c.Token = "t" },
		},
		{
			name:    "no source",
			mutate:  func(c *runConfig) {},
			wantErr: "exactly one of",
		},
		{
			name:    "two sources",
			mutate:  func(c *runConfig) { c.DSN = "postgres://db"; c.DataDir = "/data" },
			wantErr: "exactly one of",
		},
		{
			name:    "provisioner without token",
			mutate:  func(c *runConfig) { c.Provisioner = "http://prov:9090" },
			wantErr: "token is required",
		},
		{
			name:    "missing artifact and addr",
			mutate:  func(c *runConfig) { c.Artifact = ""; c.Addr = ""; c.DSN = "x" },
			wantErr: "artifact is required; addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, svcboot.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validate() = %v, want message containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunConfig_Factory(t *testing.T) {
	logger := zap.NewNop()

	static, cleanup, err := runConfig{DSN: "postgres://db"}.factory(logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := static.(*provision.Static); !ok {
		t.Errorf("dsn factory is %T, want *provision.Static", static)
	}
	cleanup()

	local, cleanup, err := runConfig{DataDir: t.TempDir(), DeploymentID: "hello"}.factory(logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := local.(*provision.Local); !ok {
		t.Errorf("data-dir factory is %T, want *provision.Local", local)
	}
	if err := cleanup(); err != nil {
		t.Errorf("cleanup() = %v", err)
	}

	remote, _, err := runConfig{Provisioner: "http://prov", Token: "t"}.factory(logger)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := remote.(*provision.Client); !ok {
		t.Errorf("provisioner factory is %T, want *provision.Client", remote)
	}
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), svcboot.Version) {
		t.Errorf("output %q does not contain version %q", out.String(), svcboot.Version)
	}
}

func TestRunCmd_ConfigFromEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "svcboot.yaml")
	if err := os.WriteFile(path, []byte("artifact: hello.so\ndsn: postgres://db\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SVCBOOT_DEPLOYMENT_ID", "from-env")

	c := newCLI()
	root := c.command()

	var got runConfig
	for _, sub := range root.Commands() {
		if sub.Name() == "run" {
			sub.RunE = func(cmd *cobra.Command, args []string) error {
				var err error
				got, err = loadRunConfig(c.v)
				return err
			}
		}
	}

	root.SetArgs([]string{"run", "--config", path, "--addr", "127.0.0.1:8000", "--secret", "api-key=s3cret"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := runConfig{
		Artifact:     "hello.so",
		Addr:         "127.0.0.1:8000",
		DeploymentID: "from-env",
		DSN:          "postgres://db",
	}
	if got.Artifact != want.Artifact || got.Addr != want.Addr || got.DeploymentID != want.DeploymentID || got.DSN != want.DSN {
		t.Errorf("config = %+v, want %+v", got, want)
	}
	if got.Secrets["api-key"] != "s3cret" {
		t.Errorf("Secrets = %v, want api-key=s3cret", got.Secrets)
	}
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"run", "--artifact", "hello.so"})

	err := root.ExecuteContext(context.Background())
	if !errors.Is(err, svcboot.ErrInvalidConfig) {
		t.Errorf("run = %v, want ErrInvalidConfig", err)
	}
}

func TestRootCmd_BadLogLevel(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"version", "--log-level", "loud"})

	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("Expected invalid log level to fail")
	}
}
