package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"electrotech/services"
)

func parsePriceQuery(c *gin.Context, name string) (*decimal.Decimal, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, services.NewValidationError(name, "must be a decimal number")
	}
	return &price, nil
}

func parseProductFilter(c *gin.Context) (services.ProductFilter, error) {
	filter := services.ProductFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Brand:    c.Query("brand"),
	}

	var err error
	if filter.MinPrice, err = parsePriceQuery(c, "min_price"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = parsePriceQuery(c, "max_price"); err != nil {
		return filter, err
	}
	return filter, nil
}

// GetProductListHandler supports page, limit, search, category, brand, min_price and max_price.
func GetProductListHandler(c *gin.Context, catalog *services.CatalogService) {
	page, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}
	filter, err := parseProductFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	products, err := catalog.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, newProductResponse(&products[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"products": resp,
		"page":     page.Number,
		"limit":    page.Limit,
	})
}

func CountProductsHandler(c *gin.Context, catalog *services.CatalogService) {
	filter, err := parseProductFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	total, err := catalog.Count(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": total,
	})
}

func GetCategoryListHandler(c *gin.Context, catalog *services.CatalogService) {
	categories, err := catalog.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
	})
}

func GetProductDataHandler(c *gin.Context, catalog *services.CatalogService) {
	productID, err := parseIDParam(c, "productID")
	if err != nil {
		respondError(c, err)
		return
	}

	product, err := catalog.Get(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": newProductResponse(product),
	})
}
