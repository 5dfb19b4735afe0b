package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/freshbulk/storefront/config"
	"github.com/freshbulk/storefront/database/seeders"
	"github.com/freshbulk/storefront/pkg/database"
	"github.com/freshbulk/storefront/pkg/migration"
)

// bootDB loads config and opens the database connection.
func bootDB() error {
	if err := config.Load(); err != nil {
		return err
	}
	return database.Connect()
}

// freshbulk migrate
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run all pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close() //nolint:errcheck

		ran, err := migration.New(database.DB).Run(cmd.Context())
		if err != nil {
			return err
		}
		if len(ran) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to migrate.")
		}
		for _, name := range ran {
			fmt.Fprintf(cmd.OutOrStdout(), "  ✓ %s\n", name)
		}
		return nil
	},
}

// freshbulk migrate:rollback
var migrateRollbackCmd = &cobra.Command{
	Use:   "migrate:rollback",
	Short: "Rollback the last batch of migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close() //nolint:errcheck

		reverted, err := migration.New(database.DB).Rollback(cmd.Context())
		if err != nil {
			return err
		}
		if len(reverted) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back.")
		}
		for _, name := range reverted {
			fmt.Fprintf(cmd.OutOrStdout(), "  ↺ %s\n", name)
		}
		return nil
	},
}

// freshbulk migrate:status
var migrateStatusCmd = &cobra.Command{
	Use:   "migrate:status",
	Short: "Show the status of each migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close() //nolint:errcheck

		statuses, err := migration.New(database.DB).Status(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tRAN\tBATCH")
		for _, s := range statuses {
			ran, batch := "no", "-"
			if s.Ran {
				ran, batch = "yes", fmt.Sprint(s.Batch)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, ran, batch)
		}
		return w.Flush()
	},
}

// freshbulk seed
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run all database seeders",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close() //nolint:errcheck

		fmt.Fprintln(cmd.OutOrStdout(), "Running seeders…")
		return seeders.RunAll(cmd.Context(), database.DB, cmd.OutOrStdout())
	},
}
