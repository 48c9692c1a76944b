package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"electrotech/models"
)

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 10000

type CartService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db, now: time.Now}
}

// CartTotal sums price times quantity over the cart's current product prices.
func CartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// lockUserCart reads the user's cart row with a row lock. It has to be the first read of the
// transaction: on MySQL the snapshot of later plain reads is taken after the lock is granted,
// so they see whatever a competing transaction committed before it.
func lockUserCart(tx *gorm.DB, userID uint) (*models.Cart, bool, error) {
	var cart models.Cart
	res := lockForUpdate(tx).Where("user_id = ?", userID).Limit(1).Find(&cart)
	if res.Error != nil {
		return nil, false, fmt.Errorf("query cart of user %d: %w", userID, res.Error)
	}
	return &cart, res.RowsAffected > 0, nil
}

// getOrCreateCart returns the user's locked cart row, inserting it on first use.
func getOrCreateCart(tx *gorm.DB, userID uint) (*models.Cart, error) {
	cart, found, err := lockUserCart(tx, userID)
	if err != nil || found {
		return cart, err
	}

	// a concurrent first access may insert the same row; keep theirs
	err = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.Cart{UserID: userID}).Error
	if err != nil {
		return nil, fmt.Errorf("create cart for user %d: %w", userID, err)
	}
	cart, found, err = lockUserCart(tx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("cart vanished after create")
	}
	return cart, nil
}

func loadCart(db *gorm.DB, cartID uint) (*models.Cart, error) {
	var cart models.Cart
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("product_id asc") }).
		Preload("Items.Product").
		First(&cart, cartID).
		Error
	if err != nil {
		return nil, notFoundOr(err, "cart", cartID)
	}
	return &cart, nil
}

func touchCart(tx *gorm.DB, cartID uint, at time.Time) error {
	if err := tx.Model(&models.Cart{ID: cartID}).UpdateColumn("updated_at", at).Error; err != nil {
		return fmt.Errorf("touch cart %d: %w", cartID, err)
	}
	return nil
}

func findCartItem(tx *gorm.DB, cartID, productID uint) (*models.CartItem, bool, error) {
	var item models.CartItem
	res := tx.Where("cart_id = ? AND product_id = ?", cartID, productID).Limit(1).Find(&item)
	if res.Error != nil {
		return nil, false, fmt.Errorf("query cart item: %w", res.Error)
	}
	return &item, res.RowsAffected > 0, nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 || quantity > MaxLineQuantity {
		return NewValidationError("quantity", "must be between 1 and %d, got %d", MaxLineQuantity, quantity)
	}
	return nil
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *CartService) GetCart(ctx context.Context, userID uint) (*models.Cart, error) {
	var cart *models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}
		cart, err = loadCart(tx, c.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// AddItem adds quantity to the existing line or creates it. The resulting quantity must fit
// in the product's stock.
func (s *CartService) AddItem(ctx context.Context, userID, productID uint, quantity int) (*models.Cart, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, func(tx *gorm.DB, cart *models.Cart) error {
		var product models.Product
		if err := lockForUpdate(tx).First(&product, productID).Error; err != nil {
			return notFoundOr(err, "product", productID)
		}

		item, found, err := findCartItem(tx, cart.ID, productID)
		if err != nil {
			return err
		}
		if !found {
			item = &models.CartItem{CartID: cart.ID, ProductID: productID}
		}

		// compared before adding so a huge request cannot wrap around
		if quantity > product.Stock-item.Quantity {
			return &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   item.Quantity + quantity,
			}
		}

		item.Quantity += quantity
		if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
			return fmt.Errorf("save cart item: %w", err)
		}
		return nil
	})
}

// UpdateItem sets the absolute quantity of a line already in the cart.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID uint, quantity int) (*models.Cart, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, func(tx *gorm.DB, cart *models.Cart) error {
		var product models.Product
		if err := lockForUpdate(tx).First(&product, productID).Error; err != nil {
			return notFoundOr(err, "product", productID)
		}

		item, found, err := findCartItem(tx, cart.ID, productID)
		if err != nil {
			return err
		}
		if !found {
			return &NotFoundError{Resource: "cart item", ID: productID}
		}

		if quantity > product.Stock {
			return &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Stock,
				Requested:   quantity,
			}
		}

		if err := tx.Model(item).UpdateColumn("quantity", quantity).Error; err != nil {
			return fmt.Errorf("update cart item: %w", err)
		}
		return nil
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uint) (*models.Cart, error) {
	return s.mutate(ctx, userID, func(tx *gorm.DB, cart *models.Cart) error {
		res := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).Delete(&models.CartItem{})
		if res.Error != nil {
			return fmt.Errorf("remove cart item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &NotFoundError{Resource: "cart item", ID: productID}
		}
		return nil
	})
}

// Clear empties the cart. The cart row itself is kept.
func (s *CartService) Clear(ctx context.Context, userID uint) (*models.Cart, error) {
	return s.mutate(ctx, userID, func(tx *gorm.DB, cart *models.Cart) error {
		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
}

// mutate runs fn against the user's cart inside one transaction, refreshes the cart's
// UpdatedAt and returns the reloaded cart.
func (s *CartService) mutate(ctx context.Context, userID uint, fn func(tx *gorm.DB, cart *models.Cart) error) (*models.Cart, error) {
	var result *models.Cart
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, cart); err != nil {
			return err
		}
		if err := touchCart(tx, cart.ID, s.now()); err != nil {
			return err
		}
		result, err = loadCart(tx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
