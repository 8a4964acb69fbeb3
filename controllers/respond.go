package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/repository"
)

// respondError maps repository sentinel errors onto HTTP statuses. The
// body shape is always {"message": "..."}.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidInput),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrNotEnough):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	default:
		log.Printf("Unexpected error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
	}
}
