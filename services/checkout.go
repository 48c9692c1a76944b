package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"electrotech/cache"
	"electrotech/models"
)

const tracerName = "electrotech/services"

type CheckoutInput struct {
	ShippingAddress string
	PaymentMethod   string
}

func (in *CheckoutInput) normalize() error {
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	if len(in.PaymentMethod) > 50 {
		return NewValidationError("payment_method", "must be at most 50 characters")
	}
	return nil
}

type CheckoutService struct {
	db    *gorm.DB
	cache ProductCache
	now   func() time.Time
}

func NewCheckoutService(db *gorm.DB, productCache ProductCache) *CheckoutService {
	if productCache == nil {
		productCache = cache.Noop{}
	}
	return &CheckoutService{db: db, cache: productCache, now: time.Now}
}

// Checkout turns the user's cart into a pending order in one transaction. Every product row
// is locked and checked before anything is written, so a shortage on any line leaves stock,
// orders and the cart untouched.
func (s *CheckoutService) Checkout(ctx context.Context, userID uint, in CheckoutInput) (*models.Order, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "checkout",
		trace.WithAttributes(attribute.Int64("user.id", int64(userID))))
	defer span.End()

	order, err := s.checkout(ctx, span, userID, in)
	if err != nil {
		span.SetAttributes(attribute.String("checkout.outcome", outcomeOf(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("checkout.outcome", "created"),
		attribute.Int64("order.id", int64(order.ID)),
		attribute.String("order.total", order.Total.StringFixed(2)),
	)
	return order, nil
}

func (s *CheckoutService) checkout(ctx context.Context, span trace.Span, userID uint, in CheckoutInput) (*models.Order, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var (
		order      models.Order
		productIDs []uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// the cart lock makes a second checkout of the same cart wait, then find it empty
		cart, found, err := lockUserCart(tx, userID)
		if err != nil {
			return err
		}
		if !found {
			return &EmptyCartError{}
		}

		var items []models.CartItem
		if err := tx.Where("cart_id = ?", cart.ID).Order("product_id asc").Find(&items).Error; err != nil {
			return fmt.Errorf("query cart items: %w", err)
		}
		if len(items) == 0 {
			return &EmptyCartError{}
		}
		span.SetAttributes(attribute.Int("checkout.items", len(items)))

		total := decimal.Zero
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			if item.Quantity < 1 {
				return NewValidationError("quantity", "cart line for product %d has quantity %d", item.ProductID, item.Quantity)
			}

			var product models.Product
			if err := lockForUpdate(tx).First(&product, item.ProductID).Error; err != nil {
				return notFoundOr(err, "product", item.ProductID)
			}
			if item.Quantity > product.Stock {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Available:   product.Stock,
					Requested:   item.Quantity,
				}
			}

			subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			total = total.Add(subtotal)
			orderItems = append(orderItems, models.OrderItem{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				Subtotal:  subtotal,
			})
			productIDs = append(productIDs, product.ID)
		}

		order = models.Order{
			UserID:          userID,
			Total:           total,
			Status:          models.OrderStatusPending,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			Items:           orderItems,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range items {
			if err := decrementStock(tx, item); err != nil {
				return err
			}
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return touchCart(tx, cart.ID, s.now())
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, productIDs...); err != nil {
		log.Printf("product cache invalidate after order %d: %v", order.ID, err)
	}

	return loadOrder(s.db.WithContext(ctx), order.ID)
}

// decrementStock never lets stock drop below zero, whatever the isolation level.
func decrementStock(tx *gorm.DB, item models.CartItem) error {
	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock >= ?", item.ProductID, item.Quantity).
		Update("stock", gorm.Expr("stock - ?", item.Quantity))
	if res.Error != nil {
		return fmt.Errorf("decrement stock of product %d: %w", item.ProductID, res.Error)
	}
	if res.RowsAffected == 0 {
		var product models.Product
		if err := tx.First(&product, item.ProductID).Error; err != nil {
			return notFoundOr(err, "product", item.ProductID)
		}
		return &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Stock,
			Requested:   item.Quantity,
		}
	}
	return nil
}

func outcomeOf(err error) string {
	var (
		stockErr *InsufficientStockError
		emptyErr *EmptyCartError
		validErr *ValidationError
	)
	switch {
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &emptyErr):
		return "empty_cart"
	case errors.As(err, &validErr):
		return "invalid"
	default:
		return "error"
	}
}
