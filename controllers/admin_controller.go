package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketplace/models"
	"marketplace/repository"
)

type AdminController struct {
	users repository.UserRepository
}

func NewAdminController(users repository.UserRepository) *AdminController {
	return &AdminController{users: users}
}

func (ac *AdminController) GetVendors(c *gin.Context) {
	vendors, err := ac.users.ListVendors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if vendors == nil {
		vendors = []models.User{}
	}
	c.JSON(http.StatusOK, vendors)
}

func (ac *AdminController) ApproveVendor(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid vendor ID"})
		return
	}

	vendor, err := ac.users.Approve(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Vendor approved successfully",
		"vendor":  summarize(vendor),
	})
}

func (ac *AdminController) DeleteVendor(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid vendor ID"})
		return
	}

	if err := ac.users.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Vendor deleted successfully"})
}
