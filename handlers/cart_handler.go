package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"electrotech/services"
)

type cartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

func GetCartHandler(c *gin.Context, carts *services.CartService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	cart, err := carts.GetCart(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart": newCartResponse(cart),
	})
}

// AddToCartHandler adds quantity on top of what the cart already holds for the product.
func AddToCartHandler(c *gin.Context, carts *services.CartService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cart, err := carts.AddItem(c.Request.Context(), identity.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "item added",
		"cart":    newCartResponse(cart),
	})
}

// UpdateCartItemQuantityHandler sets the absolute quantity of a cart line.
func UpdateCartItemQuantityHandler(c *gin.Context, carts *services.CartService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cart, err := carts.UpdateItem(c.Request.Context(), identity.UserID, req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "item updated",
		"cart":    newCartResponse(cart),
	})
}

func DeleteCartItemHandler(c *gin.Context, carts *services.CartService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	productID, err := parseIDParam(c, "productID")
	if err != nil {
		respondError(c, err)
		return
	}

	cart, err := carts.RemoveItem(c.Request.Context(), identity.UserID, productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "item removed",
		"cart":    newCartResponse(cart),
	})
}

func ClearCartHandler(c *gin.Context, carts *services.CartService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	cart, err := carts.Clear(c.Request.Context(), identity.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "cart cleared",
		"cart":    newCartResponse(cart),
	})
}
