package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/freshbulk/storefront/app/models"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *ProductRepository) WithTx(tx *gorm.DB) *ProductRepository {
	return &ProductRepository{db: tx}
}

// All returns the live catalog sorted by name.
func (r *ProductRepository) All(ctx context.Context) ([]models.Product, error) {
	products := []models.Product{}
	err := r.db.WithContext(ctx).Order("name ASC").Order("id ASC").Find(&products).Error
	return products, err
}

// Find ignores archived products.
func (r *ProductRepository) Find(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// FindIncludingArchived resolves ids for order history rendering. Missing
// ids are simply absent from the result.
func (r *ProductRepository) FindIncludingArchived(ctx context.Context, ids []uint) ([]models.Product, error) {
	products := []models.Product{}
	if len(ids) == 0 {
		return products, nil
	}
	err := r.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Save writes every column, so nil optional fields are cleared.
func (r *ProductRepository) Save(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Select("*").Omit("created_at", "deleted_at").Updates(p).Error
}

// Archive soft-deletes the product.
func (r *ProductRepository) Archive(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
