package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/freshbulk/storefront/app/events"
	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/policy"
	"github.com/freshbulk/storefront/app/repositories"
	"github.com/freshbulk/storefront/app/services"
	"github.com/freshbulk/storefront/pkg/audit"
	"github.com/freshbulk/storefront/pkg/cache"
	"github.com/freshbulk/storefront/pkg/storage"
	"github.com/freshbulk/storefront/pkg/testkit"
)

type fixture struct {
	db      *gorm.DB
	auth    *services.AuthService
	catalog *services.CatalogService
	orders  *services.OrderService
	cache   *cache.MemoryStore
	disk    *storage.LocalDisk
	trail   *audit.MemoryRecorder

	admin, alice, bob *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := testkit.NewDB(t)
	pol := policy.Default()
	store := cache.NewMemoryStore()
	disk, err := storage.NewLocalDisk(t.TempDir(), "/storage")
	require.NoError(t, err)

	trail := audit.NewMemoryRecorder()
	bus := events.NewBus(nil)
	events.Register(bus, trail, nil)

	f := &fixture{
		db:      db,
		auth:    services.NewAuthService(repositories.NewUserRepository(db)),
		catalog: services.NewCatalogService(repositories.NewProductRepository(db), store, 0, disk, pol),
		orders:  services.NewOrderService(db, pol, bus, trail),
		cache:   store,
		disk:    disk,
		trail:   trail,
	}

	f.admin, _, err = f.auth.EnsureAdmin(ctx, services.RegisterInput{Name: "Admin", Email: "admin@freshbulk.test", Password: "admin-pass"})
	require.NoError(t, err)
	f.alice, err = f.auth.Register(ctx, services.RegisterInput{Name: "Alice", Email: "alice@example.com", Password: "alice-pass"})
	require.NoError(t, err)
	f.bob, err = f.auth.Register(ctx, services.RegisterInput{Name: "Bob", Email: "bob@example.com", Password: "bob-pass"})
	require.NoError(t, err)
	return f
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (f *fixture) product(t *testing.T, name, p string) *models.Product {
	t.Helper()
	prod, err := f.catalog.Create(context.Background(), f.admin, services.ProductInput{Name: name, Price: price(p)})
	require.NoError(t, err)
	return prod
}

func delivery() services.DeliveryDetails {
	return services.DeliveryDetails{Name: "A", Contact: "555", Address: "1 Rd"}
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}
