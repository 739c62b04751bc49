package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"healthnexus-portal/internal/config"
	"healthnexus-portal/internal/middleware"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/utils"
)

// AuthHandler handles sign-in and admin impersonation.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{DB: db, Cfg: cfg}
}

// RegisterRequest represents the request body for patient self-registration.
type RegisterRequest struct {
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Gender      string `json:"gender"`
	PhoneNumber string `json:"phoneNumber"`
}

// LoginRequest represents the request body for user login. Role, when sent,
// must match the account: the admin, doctor and patient login forms are
// separate.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// LoginResponse is the value of a successful login or impersonation.
type LoginResponse struct {
	Token string               `json:"token"`
	User  models.UserSanitized `json:"user"`
}

// Register handles patient self-registration.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var existingUser models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		utils.BadRequest(c, "User with this email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	user := models.User{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Role:        models.RolePatient,
		Gender:      req.Gender,
		PhoneNumber: req.PhoneNumber,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	if err := h.DB.Create(&user).Error; err != nil {
		utils.InternalServerError(c, "Failed to create user: "+err.Error())
		return
	}

	utils.Created(c, user.Sanitize())
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid email or password")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	if req.Role != "" {
		role, ok := models.ParseRole(req.Role)
		if !ok || role != user.Role {
			utils.Unauthorized(c, "Invalid email or password")
			return
		}
	}

	token, err := utils.GenerateToken(&user, h.Cfg.JWTSecret, h.tokenTTL())
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token: "+err.Error())
		return
	}

	utils.Success(c, LoginResponse{Token: token, User: user.Sanitize()})
}

// GetProfile returns the signed-in user.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		utils.NotFound(c, "User not found")
		return
	}
	if adminID, ok := middleware.GetImpersonatorFromContext(c); ok {
		c.JSON(http.StatusOK, gin.H{"msg": utils.MsgSuccess, "value": user.Sanitize(), "impersonatedBy": adminID})
		return
	}
	utils.Success(c, user.Sanitize())
}

// Impersonate issues a token that lets an admin act as a doctor or patient.
func (h *AuthHandler) Impersonate(c *gin.Context) {
	role, ok := models.ParseRole(c.Param("role"))
	if !ok || role == models.RoleAdmin {
		utils.BadRequest(c, "Only doctors and patients can be impersonated")
		return
	}

	var target models.User
	if err := h.DB.Where("id = ? AND role = ?", c.Param("id"), role).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	adminID, _ := middleware.GetUserIDFromContext(c)
	token, err := utils.GenerateImpersonationToken(&target, adminID, h.Cfg.JWTSecret, h.tokenTTL())
	if err != nil {
		utils.InternalServerError(c, "Failed to generate token: "+err.Error())
		return
	}

	utils.Success(c, LoginResponse{Token: token, User: target.Sanitize()})
}

func (h *AuthHandler) tokenTTL() time.Duration {
	return time.Duration(h.Cfg.JWTExpirationMinutes) * time.Minute
}
