package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"connectrpc.com/connect"
	"github.com/masegraye/svcboot-go/adapter/httpsvc"
	"github.com/masegraye/svcboot-go/provision"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newProvisionerCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provisioner",
		Short: "Serve a local deployment database over the provisioner RPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadProvisionerConfig(c.v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveProvisioner(ctx, c.logger, cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("listen", ":9090", "address to serve the provisioner on")
	flags.String("data-dir", "", "directory holding deployment databases")
	flags.String("deployment-id", "default", "deployment identifier")
	flags.String("token", "", "bearer token clients must present")
	flags.StringToString("secret", nil, "secrets to store before serving, as key=value")
	return cmd
}

func serveProvisioner(ctx context.Context, logger *zap.Logger, cfg provisionerConfig) (err error) {
	local, err := provision.NewLocal(cfg.DataDir, cfg.DeploymentID, provision.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, local.Close())
	}()

	for key, value := range cfg.Secrets {
		if err := local.PutSecret(ctx, key, value); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.Handle(provision.NewHandler(local,
		connect.WithInterceptors(provision.NewTokenAuth(cfg.Token).ServerInterceptor())))

	logger.Info("provisioner starting",
		zap.String("listen", cfg.Listen),
		zap.String("deployment_id", cfg.DeploymentID),
		zap.String("database", local.Path()))

	return httpsvc.New(mux, logger).Bind(ctx, cfg.Listen)
}
