package seeders

import (
	"context"

	"gorm.io/gorm"

	"github.com/freshbulk/storefront/app/repositories"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/config"
	"github.com/freshbulk/storefront/pkg/logger"
)

func init() {
	Register("admin", seedAdmin)
}

// seedAdmin creates, or promotes, the account named by ADMIN_EMAIL. It is a
// no-op when ADMIN_EMAIL or ADMIN_PASSWORD is unset.
func seedAdmin(ctx context.Context, db *gorm.DB) error {
	email := config.Get("ADMIN_EMAIL", "")
	password := config.Get("ADMIN_PASSWORD", "")
	if email == "" || password == "" {
		logger.WithCtx(ctx).Info("seed: ADMIN_EMAIL or ADMIN_PASSWORD unset, skipping admin")
		return nil
	}

	auth := services.NewAuthService(repositories.NewUserRepository(db))
	user, created, err := auth.EnsureAdmin(ctx, services.RegisterInput{
		Name:     config.Get("ADMIN_NAME", ""),
		Email:    email,
		Password: password,
	})
	if err != nil {
		return err
	}
	logger.WithCtx(ctx).Info("seed: admin ready", "user_id", user.ID, "created", created)
	return nil
}
