// Package cmd holds the gems-api command line: the HTTP server and a few
// operator helpers that share its configuration.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/claytondukes/dibo-gems/internal/config"
	"github.com/claytondukes/dibo-gems/internal/logging"
)

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree. Running it without a subcommand serves
// the API.
func NewRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "gems-api",
		Short: "Gem catalog editing service",
		Long: `gems-api serves the gem catalog over HTTP and hands out short-lived
edit locks so that two editors never overwrite each other's work.

Configuration is read from an optional YAML file, then GEMS_* environment
variables (a .env file in the working tree is honored).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./gems.yaml when present)")

	load := func() (*config.Config, *slog.Logger, error) {
		return loadConfig(configFile)
	}

	serve := newServeCmd(load)
	root.RunE = serve.RunE
	root.AddCommand(serve)
	root.AddCommand(newLocksCmd())
	root.AddCommand(newKeyCmd())
	root.AddCommand(newImportCmd(load))
	root.AddCommand(newMigrateCmd(load))
	return root
}

type configLoader func() (*config.Config, *slog.Logger, error)

func loadConfig(configFile string) (*config.Config, *slog.Logger, error) {
	bootstrap := logging.New(os.Stderr, logging.LevelInfo, logging.FormatJSON)
	config.LoadDotEnv(bootstrap)

	v := viper.New()
	config.SetDefaults(v)
	config.BindEnv(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("gems")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if used := v.ConfigFileUsed(); used != "" {
		logger.Info("loaded config file", "path", used)
	}
	return cfg, logger, nil
}
