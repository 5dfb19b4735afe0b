package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/freshbulk/storefront/app/repositories"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/pkg/database"
)

var adminInput services.RegisterInput

// freshbulk user:admin
var userAdminCmd = &cobra.Command{
	Use:   "user:admin",
	Short: "Create an admin account, or promote an existing user",
	Long: "Registration only ever creates buyers. user:admin creates an admin with the " +
		"given credentials, or promotes the user with that email and resets their password.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := bootDB(); err != nil {
			return err
		}
		defer database.Close() //nolint:errcheck

		auth := services.NewAuthService(repositories.NewUserRepository(database.DB))
		user, created, err := auth.EnsureAdmin(cmd.Context(), adminInput)
		if err != nil {
			return err
		}

		verb := "Promoted"
		if created {
			verb = "Created"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s admin #%d <%s>\n", verb, user.ID, user.Email)
		return nil
	},
}

func init() {
	f := userAdminCmd.Flags()
	f.StringVar(&adminInput.Email, "email", "", "admin email (required)")
	f.StringVar(&adminInput.Password, "password", "", "admin password (required)")
	f.StringVar(&adminInput.Name, "name", "", "display name (default \"Administrator\")")
	_ = userAdminCmd.MarkFlagRequired("email")
	_ = userAdminCmd.MarkFlagRequired("password")
}
