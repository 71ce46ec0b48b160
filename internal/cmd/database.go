package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/claytondukes/dibo-gems/internal/storage/filestore"
	"github.com/claytondukes/dibo-gems/internal/storage/postgres"
)

var errNoDatabase = errors.New("storage.database_url is required")

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if cfg.Storage.DatabaseURL == "" {
				return errNoDatabase
			}
			pool, err := openPool(cmd.Context(), cfg.Storage.DatabaseURL, logger)
			if err != nil {
				return err
			}
			pool.Close()
			logger.Info("schema up to date")
			return nil
		},
	}
}

func newImportCmd(load configLoader) *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy the JSON catalog into Postgres",
		Long: `Import reads every gem document under the data directory and upserts it
into the database named by storage.database_url. Existing rows are replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if cfg.Storage.DatabaseURL == "" {
				return errNoDatabase
			}
			if dataDir == "" {
				dataDir = cfg.Data.Dir
			}
			src, err := filestore.New(dataDir, filestore.WithLogger(logger))
			if err != nil {
				return err
			}
			pool, err := openPool(cmd.Context(), cfg.Storage.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := postgres.NewGemRepository(pool).Import(cmd.Context(), src)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d gems from %s\n", n, dataDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "catalog directory (default is data.dir)")
	return cmd
}
