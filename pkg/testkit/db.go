// Package testkit holds the shared helpers for storefront tests: a migrated
// in-memory database, a cookie-aware HTTP client and a JSON scenario runner.
package testkit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	_ "github.com/freshbulk/storefront/database/migrations"
	"github.com/freshbulk/storefront/pkg/database"
	"github.com/freshbulk/storefront/pkg/migration"
)

// NewDB opens a private in-memory SQLite database with every migration
// applied. It is closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"
	db, err := database.Open("sqlite", dsn)
	require.NoError(t, err, "open sqlite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = migration.New(db).Run(context.Background())
	require.NoError(t, err, "run migrations")
	return db
}
