package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marketplace/config"
	"marketplace/models"
	"marketplace/repository"
	"marketplace/utils"
)

type AuthController struct {
	users repository.UserRepository
	cfg   *config.Config
}

func NewAuthController(users repository.UserRepository, cfg *config.Config) *AuthController {
	return &AuthController{users: users, cfg: cfg}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type userSummaryBody struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       models.Role `json:"role"`
	IsApproved bool        `json:"is_approved"`
}

func summarize(u *models.User) userSummaryBody {
	return userSummaryBody{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		IsApproved: u.IsApproved,
	}
}

func (ac *AuthController) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if req.Role == "" {
		req.Role = models.RoleCustomer.String()
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	// Hashing happens here, before anything touches the repository, so
	// a plaintext password never reaches the persistence layer.
	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		// Vendors wait for admin approval; everyone else is live at once.
		IsApproved: role != models.RoleVendor,
	}

	if err := ac.users.Create(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"user":    summarize(user),
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := ac.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}

	if user.Role == models.RoleVendor && !user.IsApproved {
		c.JSON(http.StatusForbidden, gin.H{"message": "Vendor account not yet approved by admin"})
		return
	}

	token, err := utils.GenerateToken(user, ac.cfg.JWTSecret, ac.cfg.JWTExpiry)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    summarize(user),
	})
}
