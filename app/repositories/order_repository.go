package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/freshbulk/storefront/app/models"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

func itemsInOrder(db *gorm.DB) *gorm.DB {
	return db.Order("order_items.id ASC")
}

// Create inserts the order row only; items are inserted with AddItems.
func (r *OrderRepository) Create(ctx context.Context, o *models.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Create(o).Error
}

// AddItems inserts items in slice order.
func (r *OrderRepository) AddItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

// Find loads the order with its items in insertion order.
func (r *OrderRepository) Find(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Preload("Items", itemsInOrder).First(&o, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// List returns orders newest first. A nil userID lists every order.
func (r *OrderRepository) List(ctx context.Context, userID *uint) ([]models.Order, error) {
	orders := []models.Order{}
	q := r.db.WithContext(ctx).Preload("Items", itemsInOrder).
		Order("created_at DESC").Order("id DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	err := q.Find(&orders).Error
	return orders, err
}

// SetStatus always writes updated_at, even when status is unchanged.
func (r *OrderRepository) SetStatus(ctx context.Context, id uint, status models.OrderStatus, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).
		UpdateColumns(map[string]any{"status": status, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
