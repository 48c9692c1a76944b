package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusCancelled = "cancelled"
)

type Order struct {
	ID              uint            `gorm:"primaryKey"`
	UserID          uint            `gorm:"index;not null"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status          string          `gorm:"size:20;not null"`
	ShippingAddress string          `gorm:"type:text"`
	PaymentMethod   string          `gorm:"size:50"`
	Items           []OrderItem
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
}
