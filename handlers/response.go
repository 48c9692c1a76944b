package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"electrotech/middleware"
	"electrotech/models"
	"electrotech/services"
)

// respondError maps service errors onto HTTP statuses. Unknown errors are logged and
// reported as a bare 500.
func respondError(c *gin.Context, err error) {
	var (
		validationErr   *services.ValidationError
		notFoundErr     *services.NotFoundError
		conflictErr     *services.ConflictError
		stockErr        *services.InsufficientStockError
		emptyCartErr    *services.EmptyCartError
		unauthorizedErr *services.UnauthorizedError
		forbiddenErr    *services.ForbiddenError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{
			"error": notFoundErr.Error(),
		})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error": conflictErr.Error(),
			"field": conflictErr.Field,
		})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
	case errors.As(err, &emptyCartErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": emptyCartErr.Error(),
		})
	case errors.As(err, &unauthorizedErr):
		c.Header("WWW-Authenticate", `Bearer realm="electrotech"`)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": unauthorizedErr.Error(),
		})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{
			"error": forbiddenErr.Error(),
		})
	default:
		log.Printf("[%s] %s %s: %v", middleware.RequestID(c), c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
	}
}

func init() {
	// report binding failures by their JSON names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bindError turns a gin binding failure into a ValidationError naming the offending field.
func bindError(err error) *services.ValidationError {
	var (
		fieldErrs validator.ValidationErrors
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &fieldErrs) && len(fieldErrs) > 0:
		fe := fieldErrs[0]
		if fe.Tag() == "required" {
			return services.NewValidationError(fe.Field(), "is required")
		}
		return services.NewValidationError(fe.Field(), "failed the %q rule", fe.Tag())
	case errors.As(err, &typeErr):
		return services.NewValidationError(typeErr.Field, "must be a %s", typeErr.Type)
	case errors.As(err, &syntaxErr):
		return services.NewValidationError("", "malformed JSON body")
	default:
		return services.NewValidationError("", "invalid request body: %v", err)
	}
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, bindError(err))
}

// mustIdentity is only used behind CheckLoginMiddleware.
func mustIdentity(c *gin.Context) (services.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		respondError(c, &services.UnauthorizedError{Message: "authentication required"})
	}
	return identity, ok
}

func parsePage(c *gin.Context) (services.Page, error) {
	number, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		return services.Page{}, services.NewValidationError("page", "must be an integer")
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageLimit)))
	if err != nil {
		return services.Page{}, services.NewValidationError("limit", "must be an integer")
	}
	return services.NewPage(number, limit)
}

func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, services.NewValidationError(name, "must be a positive integer")
	}
	return uint(id), nil
}

type userResponse struct {
	ID          uint       `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Phone       string     `json:"phone"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		Role:        u.Role,
		Status:      u.Status,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

type productResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Brand       string    `json:"brand"`
	Category    string    `json:"category"`
	Price       string    `json:"price"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newProductResponse(p *models.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Brand:       p.Brand,
		Category:    p.Category,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type cartItemResponse struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
	Available int    `json:"available"`
}

type cartResponse struct {
	ID        uint               `json:"id"`
	Items     []cartItemResponse `json:"items"`
	Total     string             `json:"total"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func newCartResponse(cart *models.Cart) cartResponse {
	items := make([]cartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemResponse{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			UnitPrice: item.Product.Price.StringFixed(2),
			Quantity:  item.Quantity,
			Subtotal:  services.CartTotal([]models.CartItem{item}).StringFixed(2),
			Available: item.Product.Stock,
		})
	}
	return cartResponse{
		ID:        cart.ID,
		Items:     items,
		Total:     services.CartTotal(cart.Items).StringFixed(2),
		UpdatedAt: cart.UpdatedAt,
	}
}

type orderItemResponse struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

type orderResponse struct {
	ID              uint                `json:"id"`
	Status          string              `json:"status"`
	Total           string              `json:"total"`
	ShippingAddress string              `json:"shipping_address"`
	PaymentMethod   string              `json:"payment_method"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.Product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Subtotal:    item.Subtotal.StringFixed(2),
		})
	}
	return orderResponse{
		ID:              order.ID,
		Status:          order.Status,
		Total:           order.Total.StringFixed(2),
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}

type participantResponse struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type lastMessageResponse struct {
	ID        uint      `json:"id"`
	AuthorID  uint      `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type conversationResponse struct {
	ID            uint                 `json:"id"`
	Other         participantResponse  `json:"other"`
	LastMessage   *lastMessageResponse `json:"last_message"`
	LastMessageAt time.Time            `json:"last_message_at"`
	UnreadCount   int64                `json:"unread_count"`
}

func newConversationResponse(s *services.ConversationSummary) conversationResponse {
	resp := conversationResponse{
		ID: s.Conversation.ID,
		Other: participantResponse{
			ID:        s.Other.ID,
			Username:  s.Other.Username,
			FirstName: s.Other.FirstName,
			LastName:  s.Other.LastName,
		},
		LastMessageAt: s.Conversation.LastMessageAt,
		UnreadCount:   s.Unread,
	}
	if s.LastMessage != nil {
		resp.LastMessage = &lastMessageResponse{
			ID:        s.LastMessage.ID,
			AuthorID:  s.LastMessage.AuthorID,
			Content:   s.LastMessage.Content,
			CreatedAt: s.LastMessage.CreatedAt,
		}
	}
	return resp
}

type messageResponse struct {
	ID             uint       `json:"id"`
	ConversationID uint       `json:"conversation_id"`
	SenderID       uint       `json:"sender_id"`
	RecipientID    uint       `json:"recipient_id"`
	Content        string     `json:"content"`
	Read           bool       `json:"read"`
	ReadAt         *time.Time `json:"read_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

func newMessageResponse(d *models.MessageDelivery) messageResponse {
	return messageResponse{
		ID:             d.MessageID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		RecipientID:    d.RecipientID,
		Content:        d.Message.Content,
		Read:           d.IsRead,
		ReadAt:         d.ReadAt,
		CreatedAt:      d.Message.CreatedAt,
	}
}
