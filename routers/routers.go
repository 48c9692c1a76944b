package routers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"electrotech/handlers"
	"electrotech/middleware"
	"electrotech/services"
)

// Dependencies is everything the route table needs. Redis may be nil.
type Dependencies struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Auth       *services.AuthService
	Catalog    *services.CatalogService
	Carts      *services.CartService
	Checkout   *services.CheckoutService
	Orders     *services.OrderService
	Messaging  *services.MessagingService
	UploadsDir string
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Authorization, X-Request-ID")
		c.Next()
	}
}

func SetupRouters(deps Dependencies) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestIDMiddleware(), corsMiddleware())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	// product images
	if deps.UploadsDir != "" {
		router.Static("/uploads", deps.UploadsDir)
	}

	router.OPTIONS("/*path", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(deps.Auth))

	api.GET("/healthz", func(c *gin.Context) {
		handlers.HealthHandler(c, deps.DB, deps.Redis)
	})

	// public
	api.POST("/auth/register", func(c *gin.Context) {
		handlers.RegisterHandler(c, deps.Auth)
	})
	api.POST("/auth/login", func(c *gin.Context) {
		handlers.LoginHandler(c, deps.Auth)
	})
	api.GET("/products", func(c *gin.Context) {
		handlers.GetProductListHandler(c, deps.Catalog)
	})
	api.GET("/products/count", func(c *gin.Context) {
		handlers.CountProductsHandler(c, deps.Catalog)
	})
	api.GET("/products/categories", func(c *gin.Context) {
		handlers.GetCategoryListHandler(c, deps.Catalog)
	})
	api.GET("/products/:productID", func(c *gin.Context) {
		handlers.GetProductDataHandler(c, deps.Catalog)
	})

	// login required
	loginRequired := api.Group("")
	loginRequired.Use(middleware.CheckLoginMiddleware())
	{
		loginRequired.POST("/auth/logout", func(c *gin.Context) {
			handlers.LogOutHandler(c, deps.Auth)
		})
		loginRequired.GET("/users/me", func(c *gin.Context) {
			handlers.GetUserProfileHandler(c, deps.Auth)
		})
		loginRequired.PATCH("/users/me", func(c *gin.Context) {
			handlers.UpdateUserProfileHandler(c, deps.Auth)
		})

		loginRequired.GET("/cart", func(c *gin.Context) {
			handlers.GetCartHandler(c, deps.Carts)
		})
		loginRequired.POST("/cart/add", func(c *gin.Context) {
			handlers.AddToCartHandler(c, deps.Carts)
		})
		loginRequired.PUT("/cart/update", func(c *gin.Context) {
			handlers.UpdateCartItemQuantityHandler(c, deps.Carts)
		})
		loginRequired.DELETE("/cart/remove/:productID", func(c *gin.Context) {
			handlers.DeleteCartItemHandler(c, deps.Carts)
		})
		loginRequired.DELETE("/cart", func(c *gin.Context) {
			handlers.ClearCartHandler(c, deps.Carts)
		})

		loginRequired.GET("/orders", func(c *gin.Context) {
			handlers.GetOrderListHandler(c, deps.Orders)
		})
		loginRequired.POST("/orders", func(c *gin.Context) {
			handlers.SendOrderHandler(c, deps.Checkout)
		})
		loginRequired.GET("/orders/:orderID", func(c *gin.Context) {
			handlers.GetOrderDataHandler(c, deps.Orders)
		})

		loginRequired.GET("/conversations", func(c *gin.Context) {
			handlers.GetConversationListHandler(c, deps.Messaging)
		})
		loginRequired.POST("/conversations", func(c *gin.Context) {
			handlers.StartConversationHandler(c, deps.Messaging)
		})
		loginRequired.GET("/conversations/:conversationID/messages", func(c *gin.Context) {
			handlers.GetMessagesHandler(c, deps.Messaging)
		})
		loginRequired.POST("/conversations/:conversationID/messages", func(c *gin.Context) {
			handlers.SendMessageHandler(c, deps.Messaging)
		})
		loginRequired.GET("/notifications/unread-messages", func(c *gin.Context) {
			handlers.GetUnreadMessagesHandler(c, deps.Messaging)
		})
	}

	// admin only
	adminRequired := api.Group("")
	adminRequired.Use(middleware.CheckLoginMiddleware(), middleware.CheckAdminPermissionMiddleware())
	{
		adminRequired.GET("/users", func(c *gin.Context) {
			handlers.GetUserListHandler(c, deps.Auth)
		})
		adminRequired.POST("/products", func(c *gin.Context) {
			handlers.CreateProductHandler(c, deps.Catalog)
		})
		adminRequired.PUT("/products/:productID", func(c *gin.Context) {
			handlers.UpdateProductHandler(c, deps.Catalog)
		})
		adminRequired.DELETE("/products/:productID", func(c *gin.Context) {
			handlers.DeleteProductHandler(c, deps.Catalog)
		})
		adminRequired.POST("/products/images", func(c *gin.Context) {
			handlers.UploadImageHandler(c, deps.UploadsDir)
		})
	}

	return router, nil
}
