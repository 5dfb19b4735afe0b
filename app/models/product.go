package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// Prices leave the API as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is a catalog entry priced per kilogram. Deleting a product archives
// it: it leaves the catalog but order history still resolves it.
type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:255;not null;index" json:"name"`
	Description *string         `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	ImageURL    *string         `gorm:"size:1024" json:"image_url"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
