package seeders

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/freshbulk/storefront/app/models"
)

func init() {
	Register("catalog", seedCatalog)
}

type starter struct {
	name, description, price string
}

// Prices are per kilogram.
var starterCatalog = []starter{
	{"Carrots", "Washed orange carrots, 10 kg sacks", "1.20"},
	{"Potatoes", "All-purpose white potatoes", "0.85"},
	{"Red Onions", "Medium red onions", "1.10"},
	{"Tomatoes", "Vine-ripened salad tomatoes", "2.40"},
	{"Bananas", "Cavendish, green to yellow", "1.35"},
	{"Apples", "Mixed crisp eating apples", "1.90"},
	{"Spinach", "Baby leaf spinach", "4.50"},
	{"Garlic", "Whole bulbs", "6.75"},
}

// seedCatalog fills an empty catalog. A catalog that already has products,
// archived ones included, is left alone.
func seedCatalog(ctx context.Context, db *gorm.DB) error {
	var n int64
	if err := db.WithContext(ctx).Unscoped().Model(&models.Product{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	products := make([]models.Product, len(starterCatalog))
	for i, s := range starterCatalog {
		desc := s.description
		products[i] = models.Product{
			Name:        s.name,
			Description: &desc,
			Price:       decimal.RequireFromString(s.price),
		}
	}
	return db.WithContext(ctx).Create(&products).Error
}
