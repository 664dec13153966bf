package main

import (
	"context"
	"fmt"
	"time"

	svcboot "github.com/masegraye/svcboot-go"
	"github.com/masegraye/svcboot-go/logger"
	"github.com/masegraye/svcboot-go/svcbootfx"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const stopTimeout = 15 * time.Second

func newRunCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load an artifact and serve it until interrupted",
		Example: `  svcboot run --artifact ./hello.so --addr :8000 --data-dir ./data
  SVCBOOT_DSN=postgres://svc@db/svc svcboot run --artifact ./hello.so --addr :8000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(c.v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), c.logger, cfg)
		},
	}

	addRunFlags(cmd.Flags())
	return cmd
}

func addRunFlags(flags *pflag.FlagSet) {
	flags.String("artifact", "", "path of the compiled service plugin")
	flags.String("addr", "", "address the service binds, e.g. :8000")
	flags.String("deployment-id", "default", "deployment identifier")
	flags.String("dsn", "", "static SQL connection string")
	flags.String("data-dir", "", "provision a local SQLite database per deployment under this directory")
	flags.String("provisioner", "", "URL of a remote provisioner")
	flags.String("token", "", "bearer token for the remote provisioner")
	flags.StringToString("secret", nil, "static secrets as key=value (with --dsn)")
}

func run(ctx context.Context, host *zap.Logger, cfg runConfig) (err error) {
	factory, cleanup, err := cfg.factory(host)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, cleanup())
	}()

	deployLogger := logger.New(cfg.DeploymentID, logger.NewZapSink(host), host.Core())

	app := fx.New(
		fx.Supply(host),
		svcbootfx.ZapEvents(),
		fx.Provide(func() svcboot.Factory { return factory }),
		svcbootfx.DeployModule(svcboot.DeployConfig{
			Artifact: cfg.Artifact,
			Addr:     cfg.Addr,
			Logger:   deployLogger,
			Binder: func() {
				host.Info("deployment bound",
					zap.String("deployment_id", cfg.DeploymentID),
					zap.String("addr", cfg.Addr))
			},
		}),
	)

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start deployment: %w", err)
	}

	sig := <-app.Wait()
	host.Info("stopping deployment", zap.Any("signal", sig.Signal), zap.Int("exit_code", sig.ExitCode))

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	err = app.Stop(stopCtx)

	if sig.ExitCode != 0 {
		err = multierr.Append(err, fmt.Errorf("deployment %s exited with code %d", cfg.DeploymentID, sig.ExitCode))
	}
	return err
}
