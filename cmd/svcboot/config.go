package main

import (
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	svcboot "github.com/masegraye/svcboot-go"
	"github.com/masegraye/svcboot-go/provision"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// runConfig is the configuration of the run command.
type runConfig struct {
	Artifact     string            `mapstructure:"artifact"`
	Addr         string            `mapstructure:"addr"`
	DeploymentID string            `mapstructure:"deployment-id"`
	DSN          string            `mapstructure:"dsn"`
	DataDir      string            `mapstructure:"data-dir"`
	Provisioner  string            `mapstructure:"provisioner"`
	Token        string            `mapstructure:"token"`
	Secrets      map[string]string `mapstructure:"secret"`
}

func loadRunConfig(v *viper.Viper) (runConfig, error) {
	var cfg runConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.validate()
}

// validate reports every problem at once.
func (c runConfig) validate() error {
	var err error
	if c.Artifact == "" {
		err = multierr.Append(err, errors.New("artifact is required"))
	}
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("addr is required"))
	}
	if c.DeploymentID == "" {
		err = multierr.Append(err, errors.New("deployment-id is required"))
	}

	sources := 0
	for _, s := range []string{c.DSN, c.DataDir, c.Provisioner} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		err = multierr.Append(err, errors.New("exactly one of dsn, data-dir or provisioner is required"))
	}
	if c.Provisioner != "" && c.Token == "" {
		err = multierr.Append(err, errors.New("token is required with provisioner"))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", svcboot.ErrInvalidConfig, err)
	}
	return nil
}

// factory builds the Factory selected by the configuration. close releases
// whatever the factory holds open.
func (c runConfig) factory(logger *zap.Logger) (svcboot.Factory, func() error, error) {
	nop := func() error { return nil }

	switch {
	case c.DSN != "":
		return &provision.Static{DSN: c.DSN, Secrets: c.Secrets}, nop, nil

	case c.DataDir != "":
		local, err := provision.NewLocal(c.DataDir, c.DeploymentID, provision.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return local, local.Close, nil

	default:
		client := provision.NewClient(http.DefaultClient, c.Provisioner,
			connect.WithInterceptors(provision.NewTokenAuth(c.Token).ClientInterceptor()))
		return client, nop, nil
	}
}

// provisionerConfig is the configuration of the provisioner command.
type provisionerConfig struct {
	Listen       string            `mapstructure:"listen"`
	DataDir      string            `mapstructure:"data-dir"`
	DeploymentID string            `mapstructure:"deployment-id"`
	Token        string            `mapstructure:"token"`
	Secrets      map[string]string `mapstructure:"secret"`
}

func loadProvisionerConfig(v *viper.Viper) (provisionerConfig, error) {
	var cfg provisionerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	var err error
	if cfg.Listen == "" {
		err = multierr.Append(err, errors.New("listen is required"))
	}
	if cfg.DataDir == "" {
		err = multierr.Append(err, errors.New("data-dir is required"))
	}
	if cfg.DeploymentID == "" {
		err = multierr.Append(err, errors.New("deployment-id is required"))
	}
	if cfg.Token == "" {
		err = multierr.Append(err, errors.New("token is required"))
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: %w", svcboot.ErrInvalidConfig, err)
	}
	return cfg, nil
}
