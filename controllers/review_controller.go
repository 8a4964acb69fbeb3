package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace/middlewares"
	"marketplace/models"
	"marketplace/repository"
)

type ReviewController struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
}

func NewReviewController(reviews repository.ReviewRepository, products repository.ProductRepository) *ReviewController {
	return &ReviewController{reviews: reviews, products: products}
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

func (rc *ReviewController) Add(c *gin.Context) {
	customerID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product ID"})
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Rating must be between 1 and 5"})
		return
	}

	product, err := rc.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !product.IsActive {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}

	review := &models.Review{
		ProductID:  productID,
		CustomerID: customerID,
		Rating:     req.Rating,
		Comment:    req.Comment,
	}
	if err := rc.reviews.Create(c.Request.Context(), review); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Review added",
		"review":  review,
	})
}

func (rc *ReviewController) GetByProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid product ID"})
		return
	}

	reviews, err := rc.reviews.ListByProduct(c.Request.Context(), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	c.JSON(http.StatusOK, reviews)
}

// loadOwned fetches the review and enforces owner-or-admin access.
func (rc *ReviewController) loadOwned(c *gin.Context) (*models.Review, bool) {
	callerID, ok := middlewares.CallerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return nil, false
	}
	role, _ := middlewares.CallerRole(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid review ID"})
		return nil, false
	}

	review, err := rc.reviews.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	if review.CustomerID != callerID && role != models.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"message": "Not authorized for this review"})
		return nil, false
	}
	return review, true
}

func (rc *ReviewController) Update(c *gin.Context) {
	review, ok := rc.loadOwned(c)
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Rating must be between 1 and 5"})
		return
	}

	review.Rating = req.Rating
	review.Comment = req.Comment
	if err := rc.reviews.Update(c.Request.Context(), review); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Review updated",
		"review":  review,
	})
}

func (rc *ReviewController) Delete(c *gin.Context) {
	review, ok := rc.loadOwned(c)
	if !ok {
		return
	}

	if err := rc.reviews.Delete(c.Request.Context(), review.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Review deleted"})
}
