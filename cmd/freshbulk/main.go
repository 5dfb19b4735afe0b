// Command freshbulk runs the storefront and its maintenance tasks:
//
//	freshbulk serve --migrate   # start HTTP and gRPC, applying migrations first
//	freshbulk migrate
//	freshbulk migrate:rollback
//	freshbulk migrate:status
//	freshbulk seed              # admin from ADMIN_* plus a starter catalog
//	freshbulk route:list
//	freshbulk user:admin --email ops@example.com --password ...
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	// Migrations register themselves from init.
	_ "github.com/freshbulk/storefront/database/migrations"
)

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "freshbulk",
	Short:         "freshbulk bulk produce storefront",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeListCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(migrateRollbackCmd)
	rootCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(seedCmd)

	rootCmd.AddCommand(userAdminCmd)
}
