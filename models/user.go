package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	AccountActive    = "active"
	AccountSuspended = "suspended"
)

type User struct {
	gorm.Model
	Username    string `gorm:"size:50;uniqueIndex;not null"`
	Email       string `gorm:"size:100;uniqueIndex;not null"`
	Password    string `gorm:"size:255;not null"`
	FirstName   string `gorm:"size:100"`
	LastName    string `gorm:"size:100"`
	Phone       string `gorm:"size:20"`
	Role        string `gorm:"size:20;not null"`
	Status      string `gorm:"size:20;not null"`
	LastLoginAt *time.Time
	Cart        Cart
	Orders      []Order
	LoginTokens []LoginToken
}

func (u User) IsActive() bool {
	return u.Status == AccountActive
}
