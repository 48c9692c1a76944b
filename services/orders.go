package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"electrotech/models"
)

type OrderService struct {
	db *gorm.DB
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{db: db}
}

// loadOrder preloads items with their products, including products deleted since the order.
func loadOrder(db *gorm.DB, id uint) (*models.Order, error) {
	var order models.Order
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&order, id).
		Error
	if err != nil {
		return nil, notFoundOr(err, "order", id)
	}
	return &order, nil
}

// List returns the user's orders, newest first, and the total number of orders.
func (s *OrderService) List(ctx context.Context, userID uint, page Page) ([]models.Order, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	var orders []models.Order
	err := page.apply(db.Where("user_id = ?", userID).Order("created_at desc, id desc")).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Find(&orders).
		Error
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// Get returns one order. Only its owner or an admin may read it.
func (s *OrderService) Get(ctx context.Context, caller Identity, id uint) (*models.Order, error) {
	order, err := loadOrder(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if order.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, &ForbiddenError{Message: "order belongs to another user"}
	}
	return order, nil
}
