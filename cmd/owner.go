package cmd

import (
	"context"
	"fmt"

	"github.com/example/tablebook/internal/auth"
	"github.com/example/tablebook/internal/db"
	"github.com/example/tablebook/internal/migrate"
	"github.com/spf13/cobra"
)

func newOwnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage restaurant owner accounts",
	}
	cmd.AddCommand(newOwnerAddCmd())
	return cmd
}

func newOwnerAddCmd() *cobra.Command {
	var email, password string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add an owner account (email/password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, d *db.DB) error {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
				// sessions are not issued here, so no cookie keys are needed
				store := auth.NewStore(auth.NewPGOwners(d), nil, nil)
				id, err := store.CreateOwner(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created owner %q id=%d\n", email, id)
				return nil
			})
		},
	}

	c.Flags().StringVar(&email, "email", "", "owner email")
	c.Flags().StringVar(&password, "password", "", "password")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}
