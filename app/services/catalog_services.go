package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshbulk/storefront/app/models"
	"github.com/freshbulk/storefront/app/policy"
	"github.com/freshbulk/storefront/app/repositories"
	"github.com/freshbulk/storefront/pkg/apperr"
	"github.com/freshbulk/storefront/pkg/cache"
	"github.com/freshbulk/storefront/pkg/logger"
	"github.com/freshbulk/storefront/pkg/storage"
	"github.com/freshbulk/storefront/pkg/validate"
)

// CatalogKey is the cache key of the product list.
const CatalogKey = "catalog:products"

// MaxImageBytes caps product image uploads.
const MaxImageBytes = 5 << 20

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
}

var (
	errProductNotFound = apperr.NotFound("Product not found")
	maxPrice           = decimal.New(1, 8)
)

// ProductInput is the body of product create and update. Update replaces
// every field, so omitted optional fields are cleared.
type ProductInput struct {
	Name        string           `json:"name"        validate:"max=255"`
	Description *string          `json:"description" validate:"nullable,max=5000"`
	Price       *decimal.Decimal `json:"price"`
	ImageURL    *string          `json:"image_url"   validate:"nullable,max=1024"`
}

func (in ProductInput) apply(p *models.Product) error {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.Price == nil || in.Price.IsZero() {
		return apperr.Validation("Name and price are required")
	}
	// Checked after rounding: the column keeps two decimals.
	price := in.Price.Round(2)
	if !price.IsPositive() || price.GreaterThanOrEqual(maxPrice) {
		return apperr.Validation("Price must be a positive amount below 100000000")
	}
	if err := validate.Check(in); err != nil {
		return err
	}
	p.Name = name
	p.Description = optional(in.Description)
	p.Price = price
	p.ImageURL = optional(in.ImageURL)
	return nil
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

type CatalogService struct {
	products *repositories.ProductRepository
	cache    cache.Store
	ttl      time.Duration
	disk     storage.Disk
	policy   *policy.Policy
}

// NewCatalogService wires the catalog. store and disk may be nil: without a
// store every read hits the database, without a disk image upload fails.
func NewCatalogService(products *repositories.ProductRepository, store cache.Store, ttl time.Duration, disk storage.Disk, p *policy.Policy) *CatalogService {
	return &CatalogService{products: products, cache: store, ttl: ttl, disk: disk, policy: p}
}

// List returns the live catalog sorted by name.
func (s *CatalogService) List(ctx context.Context) ([]models.Product, error) {
	products, err := cache.Remember(ctx, s.cache, CatalogKey, s.ttl, s.products.All)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch products", err)
	}
	return products, nil
}

func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.products.Find(ctx, id)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, errProductNotFound
	case err != nil:
		return nil, apperr.Internal("Failed to fetch product", err)
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, caller *models.User, in ProductInput) (*models.Product, error) {
	if err := s.policy.Authorize(caller, policy.ManageProducts); err != nil {
		return nil, err
	}

	p := &models.Product{}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, apperr.Internal("Failed to create product", err)
	}

	s.invalidate(ctx)
	logger.WithCtx(ctx).Info("product created", "product_id", p.ID, "by", caller.ID)
	return p, nil
}

// Update replaces the product's fields.
func (s *CatalogService) Update(ctx context.Context, caller *models.User, id uint, in ProductInput) (*models.Product, error) {
	if err := s.policy.Authorize(caller, policy.ManageProducts); err != nil {
		return nil, err
	}

	var scratch models.Product
	if err := in.apply(&scratch); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, p); err != nil {
		return nil, apperr.Internal("Failed to update product", err)
	}

	s.invalidate(ctx)
	return s.Get(ctx, id)
}

// Delete archives the product. Orders that reference it keep rendering it.
func (s *CatalogService) Delete(ctx context.Context, caller *models.User, id uint) error {
	if err := s.policy.Authorize(caller, policy.ManageProducts); err != nil {
		return err
	}

	switch err := s.products.Archive(ctx, id); {
	case errors.Is(err, repositories.ErrNotFound):
		return errProductNotFound
	case err != nil:
		return apperr.Internal("Failed to delete product", err)
	}

	s.invalidate(ctx)
	logger.WithCtx(ctx).Info("product archived", "product_id", id, "by", caller.ID)
	return nil
}

// AttachImage stores src on the configured disk and points the product's
// image_url at it. Only JPEG, PNG and WebP files up to MaxImageBytes are
// accepted; the type is sniffed from the content, not trusted from the
// client.
func (s *CatalogService) AttachImage(ctx context.Context, caller *models.User, id uint, src io.Reader) (*models.Product, error) {
	if err := s.policy.Authorize(caller, policy.ManageProducts); err != nil {
		return nil, err
	}

	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(src, MaxImageBytes+1))
	if err != nil {
		return nil, apperr.Validation("Failed to read image")
	}
	if len(data) == 0 {
		return nil, apperr.Validation("Image is required")
	}
	if len(data) > MaxImageBytes {
		return nil, apperr.Validationf("Image must be at most %d MB", MaxImageBytes>>20)
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, apperr.Validation("Image must be a JPEG, PNG or WebP file")
	}
	if s.disk == nil {
		return nil, apperr.Internal("Failed to store image", errors.New("no storage disk configured"))
	}

	key := fmt.Sprintf("products/%d/%s.%s", p.ID, uuid.NewString(), ext)
	if err := s.disk.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return nil, apperr.Internal("Failed to store image", err)
	}

	url := s.disk.URL(key)
	p.ImageURL = &url
	if err := s.products.Save(ctx, p); err != nil {
		_ = s.disk.Delete(ctx, key)
		return nil, apperr.Internal("Failed to update product", err)
	}

	s.invalidate(ctx)
	logger.WithCtx(ctx).Info("product image stored", "product_id", p.ID, "disk", s.disk.Name(), "key", key)
	return s.Get(ctx, id)
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, CatalogKey); err != nil {
		logger.WithCtx(ctx).Warn("catalog cache invalidation failed", "error", err)
	}
}
