package controllers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketplace/middlewares"
	"marketplace/models"
	"marketplace/repository"
)

type ProductController struct {
	products  repository.ProductRepository
	store     repository.ProductRepository
	uploadDir string
}

// NewProductController takes the read repository used for public listing
// (usually cache-backed) and the authoritative store. Mutations read the
// current row from the store so a cached value is never written back.
func NewProductController(products, store repository.ProductRepository, uploadDir string) *ProductController {
	return &ProductController{products: products, store: store, uploadDir: uploadDir}
}

func (pc *ProductController) GetAll(c *gin.Context) {
	products, err := pc.products.ListActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	c.JSON(http.StatusOK, products)
}

func (pc *ProductController) GetByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product ID"})
		return
	}

	product, err := pc.products.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// saveImage stores an uploaded product image under a uuid filename and
// returns the stored name, or "" when no file was sent.
func (pc *ProductController) saveImage(c *gin.Context) (string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", nil
	}

	name := uuid.NewString() + filepath.Ext(file.Filename)
	if err := c.SaveUploadedFile(file, filepath.Join(pc.uploadDir, name)); err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return name, nil
}

func (pc *ProductController) Create(c *gin.Context) {
	vendorID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}

	price, err := strconv.ParseFloat(c.PostForm("price"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid price"})
		return
	}
	stock, err := strconv.Atoi(c.DefaultPostForm("stock", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid stock"})
		return
	}

	image, err := pc.saveImage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	product := &models.Product{
		VendorID:    vendorID,
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Price:       price,
		Stock:       stock,
		Category:    c.PostForm("category"),
		Image:       image,
	}

	if err := pc.products.Create(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product added successfully",
		"product": product,
	})
}

func (pc *ProductController) Update(c *gin.Context) {
	vendorID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product ID"})
		return
	}

	product, err := pc.store.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if product.VendorID != vendorID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not authorized to update this product"})
		return
	}

	if v := c.PostForm("name"); v != "" {
		product.Name = v
	}
	if v := c.PostForm("description"); v != "" {
		product.Description = v
	}
	if v := c.PostForm("category"); v != "" {
		product.Category = v
	}
	if v := c.PostForm("price"); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid price"})
			return
		}
		product.Price = price
	}
	if v := c.PostForm("stock"); v != "" {
		stock, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid stock"})
			return
		}
		product.Stock = stock
	}
	if v := c.PostForm("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid is_active"})
			return
		}
		product.IsActive = active
	}
	if image, err := pc.saveImage(c); err != nil {
		respondError(c, err)
		return
	} else if image != "" {
		product.Image = image
	}

	if err := pc.products.Update(c.Request.Context(), product); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": product,
	})
}

func (pc *ProductController) Delete(c *gin.Context) {
	vendorID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product ID"})
		return
	}

	product, err := pc.store.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if product.VendorID != vendorID {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not authorized to delete this product"})
		return
	}

	if err := pc.products.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}
