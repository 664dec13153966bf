package main

import (
	"fmt"
	"strings"

	"github.com/masegraye/svcboot-go/adapter/grpcsvc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// cli carries state shared by all subcommands.
type cli struct {
	v      *viper.Viper
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	return newCLI().command()
}

func newCLI() *cli {
	v := viper.New()
	v.SetEnvPrefix("SVCBOOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &cli{v: v}
}

func (c *cli) command() *cobra.Command {
	root := &cobra.Command{
		Use:           "svcboot",
		Short:         "Load, provision and serve service plugins",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (YAML or TOML)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("dev", false, "human-readable development logging")

	root.AddCommand(
		newRunCmd(c),
		newProvisionerCmd(c),
		newVersionCmd(),
	)
	return root
}

// setup binds the command's flags, reads the optional config file and builds
// the host logger, which also receives gRPC's internal logs.
func (c *cli) setup(cmd *cobra.Command) error {
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if path := c.v.GetString("config"); path != "" {
		c.v.SetConfigFile(path)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}

	logger, err := newLogger(c.v.GetString("log-level"), c.v.GetBool("dev"))
	if err != nil {
		return err
	}
	c.logger = logger
	grpcsvc.RouteLogs(logger)
	return nil
}

func newLogger(level string, dev bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}
