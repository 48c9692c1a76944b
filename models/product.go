package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product deletes are soft so that historical order items keep resolving their product.
type Product struct {
	gorm.Model
	Name        string          `gorm:"size:200;not null;index"`
	Description string          `gorm:"type:text"`
	Brand       string          `gorm:"size:100;not null;index"`
	Category    string          `gorm:"size:50;not null;index"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock       int             `gorm:"not null;check:chk_products_stock,stock >= 0"`
	ImageURL    string          `gorm:"size:255"`
}
