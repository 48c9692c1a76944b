package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"electrotech/services"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", services.NewValidationError("quantity", "must be at least 1, got 0"), http.StatusBadRequest, `"field":"quantity"`},
		{"not found", &services.NotFoundError{Resource: "product", ID: uint(7)}, http.StatusNotFound, `"error"`},
		{"conflict", &services.ConflictError{Field: "email", Message: "email is already registered"}, http.StatusConflict, `"field":"email"`},
		{"stock", &services.InsufficientStockError{ProductID: 3, Available: 1, Requested: 2}, http.StatusConflict, `"available":1`},
		{"empty cart", &services.EmptyCartError{}, http.StatusBadRequest, `"error"`},
		{"unauthorized", &services.UnauthorizedError{Message: "nope"}, http.StatusUnauthorized, `"error":"nope"`},
		{"forbidden", &services.ForbiddenError{}, http.StatusForbidden, `"error"`},
		{"wrapped", fmt.Errorf("checkout: %w", &services.EmptyCartError{}), http.StatusBadRequest, `"error"`},
		{"internal", errors.New("connection reset"), http.StatusInternalServerError, `"internal server error"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
			assert.NotContains(t, w.Body.String(), "connection reset")
		})
	}
}

func TestParsePage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	parse := func(query string) (services.Page, error) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+query, nil)
		return parsePage(c)
	}

	page, err := parse("")
	assert.NoError(t, err)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, services.DefaultPageLimit, page.Limit)

	page, err = parse("page=3&limit=5")
	assert.NoError(t, err)
	assert.Equal(t, 10, page.Offset())

	_, err = parse("page=x")
	assert.Error(t, err)
	_, err = parse("limit=0")
	assert.Error(t, err)
}

func TestRespondBindError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	bind := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")

		var req cartItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
		}
		return w
	}

	w := bind(`{"quantity": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"product_id: is required","field":"product_id"}`, w.Body.String())

	w = bind(`{"product_id": "seven", "quantity": 2}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"product_id"`)

	w = bind(`{"product_id": 1,`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":""`)
	assert.NotContains(t, w.Body.String(), `"message"`)
}
