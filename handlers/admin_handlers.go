package handlers

import (
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"electrotech/middleware"
	"electrotech/services"
)

const maxImageSize = 5 << 20

var allowedImageExtensions = []string{".jpg", ".jpeg", ".png"}

func imageExtension(file *multipart.FileHeader) (string, bool) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	for _, allowed := range allowedImageExtensions {
		if ext == allowed {
			return ext, true
		}
	}
	return "", false
}

type productRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Brand       string          `json:"brand" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"image_url"`
}

func (r productRequest) input() services.ProductInput {
	return services.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Brand:       r.Brand,
		Category:    r.Category,
		Price:       r.Price,
		Stock:       r.Stock,
		ImageURL:    r.ImageURL,
	}
}

// GetUserListHandler returns a page of the user directory.
func GetUserListHandler(c *gin.Context, auth *services.AuthService) {
	page, err := parsePage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	users, total, err := auth.ListUsers(c.Request.Context(), page)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, newUserResponse(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"users": resp,
		"total": total,
		"page":  page.Number,
		"limit": page.Limit,
	})
}

// UploadImageHandler stores a product image under uploadsDir with a random name and returns
// its public URL.
func UploadImageHandler(c *gin.Context, uploadsDir string) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"message": "missing image file",
			"error":   err.Error(),
		})
		return
	}

	ext, ok := imageExtension(file)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("image must be one of %s", strings.Join(allowedImageExtensions, ", ")),
		})
		return
	}
	if file.Size > maxImageSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": fmt.Sprintf("image must be at most %d bytes", maxImageSize),
		})
		return
	}

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		log.Printf("[%s] create uploads dir: %v", middleware.RequestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
		return
	}

	imageName := uuid.NewString() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(uploadsDir, imageName)); err != nil {
		log.Printf("[%s] save image: %v", middleware.RequestID(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "image uploaded",
		"image_url": path.Join("/uploads", imageName),
	})
}

func CreateProductHandler(c *gin.Context, catalog *services.CatalogService) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := catalog.Create(c.Request.Context(), req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"product": newProductResponse(product),
	})
}

// UpdateProductHandler replaces every editable field of the product.
func UpdateProductHandler(c *gin.Context, catalog *services.CatalogService) {
	productID, err := parseIDParam(c, "productID")
	if err != nil {
		respondError(c, err)
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	product, err := catalog.Update(c.Request.Context(), productID, req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": newProductResponse(product),
	})
}

func DeleteProductHandler(c *gin.Context, catalog *services.CatalogService) {
	productID, err := parseIDParam(c, "productID")
	if err != nil {
		respondError(c, err)
		return
	}

	if err := catalog.Delete(c.Request.Context(), productID); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
