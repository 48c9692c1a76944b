package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"electrotech/cache"
	"electrotech/models"
)

// ProductCache is the read-through cache in front of product lookups.
type ProductCache interface {
	Get(ctx context.Context, id uint) (*models.Product, error)
	Set(ctx context.Context, product *models.Product) error
	Invalidate(ctx context.Context, ids ...uint) error
}

type ProductFilter struct {
	Search   string
	Category string
	Brand    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

func (f ProductFilter) validate() error {
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return NewValidationError("min_price", "must not be negative")
	}
	if f.MaxPrice != nil && f.MaxPrice.IsNegative() {
		return NewValidationError("max_price", "must not be negative")
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return NewValidationError("min_price", "must not exceed max_price")
	}
	return nil
}

func (f ProductFilter) apply(db *gorm.DB) *gorm.DB {
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if f.Category != "" {
		db = db.Where("category = ?", f.Category)
	}
	if f.Brand != "" {
		db = db.Where("brand = ?", f.Brand)
	}
	if f.MinPrice != nil {
		db = db.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		db = db.Where("price <= ?", *f.MaxPrice)
	}
	return db
}

type ProductInput struct {
	Name        string
	Description string
	Brand       string
	Category    string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
}

func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Brand = strings.TrimSpace(in.Brand)
	in.Category = strings.TrimSpace(in.Category)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

func (in ProductInput) validate() error {
	switch {
	case in.Name == "" || len(in.Name) > 200:
		return NewValidationError("name", "must be 1-200 characters")
	case in.Brand == "" || len(in.Brand) > 100:
		return NewValidationError("brand", "must be 1-100 characters")
	case in.Category == "" || len(in.Category) > 50:
		return NewValidationError("category", "must be 1-50 characters")
	case !in.Price.IsPositive():
		return NewValidationError("price", "must be greater than 0")
	case in.Price.Exponent() < -2 && !in.Price.Equal(in.Price.Round(2)):
		return NewValidationError("price", "must have at most 2 decimal places")
	case in.Stock < 0:
		return NewValidationError("stock", "must not be negative")
	case len(in.ImageURL) > 255:
		return NewValidationError("image_url", "must be at most 255 characters")
	}
	return nil
}

func (in ProductInput) applyTo(p *models.Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.Brand = in.Brand
	p.Category = in.Category
	p.Price = in.Price
	p.Stock = in.Stock
	p.ImageURL = in.ImageURL
}

type CatalogService struct {
	db    *gorm.DB
	cache ProductCache
}

func NewCatalogService(db *gorm.DB, productCache ProductCache) *CatalogService {
	if productCache == nil {
		productCache = cache.Noop{}
	}
	return &CatalogService{db: db, cache: productCache}
}

func (s *CatalogService) List(ctx context.Context, filter ProductFilter, page Page) ([]models.Product, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}

	var products []models.Product
	query := filter.apply(s.db.WithContext(ctx).Model(&models.Product{}))
	if err := page.apply(query.Order("id asc")).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) Count(ctx context.Context, filter ProductFilter) (int64, error) {
	if err := filter.validate(); err != nil {
		return 0, err
	}

	var total int64
	if err := filter.apply(s.db.WithContext(ctx).Model(&models.Product{})).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).
		Model(&models.Product{}).
		Distinct("category").
		Order("category asc").
		Pluck("category", &categories).
		Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// Get serves from the cache when possible and fills it on a miss.
func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	cached, err := s.cache.Get(ctx, id)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("product cache get %d: %v", id, err)
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		return nil, notFoundOr(err, "product", id)
	}

	s.refreshCache(ctx, &product)
	return &product, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var product models.Product
	in.applyTo(&product)
	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.refreshCache(ctx, &product)
	return &product, nil
}

// Update replaces every editable field of the product.
func (s *CatalogService) Update(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).First(&product, id).Error; err != nil {
			return notFoundOr(err, "product", id)
		}
		in.applyTo(&product)
		if err := tx.Save(&product).Error; err != nil {
			return fmt.Errorf("save product: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.refreshCache(ctx, &product)
	return &product, nil
}

// Delete soft-deletes the product and removes it from every cart in the same transaction.
// Order items keep pointing at the soft-deleted row.
func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := lockForUpdate(tx).First(&product, id).Error; err != nil {
			return notFoundOr(err, "product", id)
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("remove product from carts: %w", err)
		}
		if err := tx.Delete(&product).Error; err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.cache.Invalidate(ctx, id); err != nil {
		log.Printf("product cache invalidate %d: %v", id, err)
	}
	return nil
}

func (s *CatalogService) refreshCache(ctx context.Context, product *models.Product) {
	if err := s.cache.Set(ctx, product); err != nil {
		log.Printf("product cache set %d: %v", product.ID, err)
	}
}
