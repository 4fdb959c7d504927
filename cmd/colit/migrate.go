package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mr-houngbo/Colit/internal/config"
	"github.com/Mr-houngbo/Colit/internal/infrastructure/postgres"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if list, _ := cmd.Flags().GetBool("list"); list {
				names, err := postgres.MigrationNames()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			pool, err := postgres.NewPool(cmd.Context(), config.DatabaseURL(), postgres.PoolOptions{MaxConns: 2})
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			defer pool.Close()
			if err := postgres.RunMigrations(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(out, "migrations applied")
			return nil
		},
	}
	cmd.Flags().Bool("list", false, "list embedded migrations without applying them")
	return cmd
}
