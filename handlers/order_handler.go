package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"electrotech/services"
)

// SendOrderHandler checks out the caller's cart. The body is optional.
func SendOrderHandler(c *gin.Context, checkout *services.CheckoutService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	var req struct {
		ShippingAddress string `json:"shipping_address"`
		PaymentMethod   string `json:"payment_method"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	order, err := checkout.Checkout(c.Request.Context(), identity.UserID, services.CheckoutInput{
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "order created",
		"order":   newOrderResponse(order),
	})
}

func GetOrderListHandler(c *gin.Context, orders *services.OrderService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	page, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	list, total, err := orders.List(c.Request.Context(), identity.UserID, page)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]orderResponse, 0, len(list))
	for i := range list {
		resp = append(resp, newOrderResponse(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": resp,
		"total":  total,
		"page":   page.Number,
		"limit":  page.Limit,
	})
}

func GetOrderDataHandler(c *gin.Context, orders *services.OrderService) {
	identity, ok := mustIdentity(c)
	if !ok {
		return
	}

	orderID, err := parseIDParam(c, "orderID")
	if err != nil {
		respondError(c, err)
		return
	}

	order, err := orders.Get(c.Request.Context(), identity, orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": newOrderResponse(order),
	})
}
