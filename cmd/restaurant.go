package cmd

import (
	"context"
	"fmt"

	"github.com/example/tablebook/internal/auth"
	"github.com/example/tablebook/internal/config"
	"github.com/example/tablebook/internal/db"
	"github.com/example/tablebook/internal/ledger/postgres"
	"github.com/example/tablebook/internal/logger"
	"github.com/example/tablebook/internal/migrate"
	"github.com/spf13/cobra"
)

func newRestaurantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restaurant",
		Short: "Manage restaurant profiles",
	}
	cmd.AddCommand(newRestaurantImportCmd())
	return cmd
}

func newRestaurantImportCmd() *cobra.Command {
	var file string

	c := &cobra.Command{
		Use:   "import",
		Short: "Create or replace restaurants, hours, settings and tables from a JSON seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return withDB(func(ctx context.Context, d *db.DB) error {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
				if err := importSeed(ctx, postgres.NewDirectory(d), auth.NewPGOwners(d), file, cfg, logger.Default()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s\n", file)
				return nil
			})
		},
	}

	c.Flags().StringVar(&file, "file", "", "seed JSON file")
	_ = c.MarkFlagRequired("file")
	return c
}
