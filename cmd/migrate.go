package cmd

import (
	"context"
	"fmt"

	"github.com/example/tablebook/internal/config"
	"github.com/example/tablebook/internal/db"
	"github.com/example/tablebook/internal/migrate"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, d *db.DB) error {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations not yet applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, d *db.DB) error {
				pending, err := migrate.Pending(ctx, d)
				if err != nil {
					return err
				}
				if len(pending) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "up to date")
				}
				for _, p := range pending {
					fmt.Fprintf(cmd.OutOrStdout(), "pending %s\n", p)
				}
				return nil
			})
		},
	})
	return cmd
}

func withDB(fn func(ctx context.Context, d *db.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer d.Close()
	return fn(ctx, d)
}
