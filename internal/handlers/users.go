package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/utils"
)

// UserHandler handles doctor and patient directory requests.
type UserHandler struct {
	DB       *gorm.DB
	Activity *activity.Recorder
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB, rec *activity.Recorder) *UserHandler {
	return &UserHandler{DB: db, Activity: rec}
}

// CreateDoctorRequest represents the request body for adding a doctor.
type CreateDoctorRequest struct {
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	Gender      string `json:"gender"`
	PhoneNumber string `json:"phoneNumber"`
	Specialty   string `json:"specialty" binding:"required"`
	Experience  int    `json:"experience" binding:"gte=0"`
	Fee         int    `json:"fee" binding:"gte=0"`
}

// UpdateDoctorRequest represents the request body for editing a doctor.
type UpdateDoctorRequest struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Gender      *string `json:"gender"`
	PhoneNumber *string `json:"phoneNumber"`
	Specialty   *string `json:"specialty"`
	Experience  *int    `json:"experience" binding:"omitempty,gte=0"`
	Fee         *int    `json:"fee" binding:"omitempty,gte=0"`
}

// GetDoctors lists doctors for every visitor. Optional ?specialty= filter.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	query := h.DB.Where("role = ?", models.RoleDoctor).Order("first_name asc")
	if specialty := strings.TrimSpace(c.Query("specialty")); specialty != "" {
		query = query.Where("specialty = ?", specialty)
	}

	var doctors []models.User
	if err := query.Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}

	utils.SuccessField(c, "doctors", sanitizeAll(doctors))
}

// GetPatients lists patients for the admin dashboard.
func (h *UserHandler) GetPatients(c *gin.Context) {
	var patients []models.User
	if err := h.DB.Where("role = ?", models.RolePatient).Order("created_at desc").Find(&patients).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch patients: "+err.Error())
		return
	}

	utils.Success(c, sanitizeAll(patients))
}

// CreateDoctor handles adding a doctor (admin).
func (h *UserHandler) CreateDoctor(c *gin.Context) {
	var req CreateDoctorRequest
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

	doctor := models.User{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Role:        models.RoleDoctor,
		Gender:      req.Gender,
		PhoneNumber: req.PhoneNumber,
		Specialty:   req.Specialty,
		Experience:  req.Experience,
		Fee:         req.Fee,
	}
	if err := doctor.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	if err := h.DB.Create(&doctor).Error; err != nil {
		utils.InternalServerError(c, "Failed to create doctor: "+err.Error())
		return
	}

	h.Activity.Record(c.Request.Context(), activity.TypeDoctor, "%s (%s) joined the staff", doctor.FullName(), doctor.Specialty)

	utils.Created(c, doctor.Sanitize())
}

// UpdateDoctor handles editing a doctor by ID (admin).
func (h *UserHandler) UpdateDoctor(c *gin.Context) {
	var req UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+utils.FormatValidationError(err))
		return
	}

	doctor, ok := h.findDoctor(c)
	if !ok {
		return
	}

	if req.Email != nil && *req.Email != doctor.Email {
		var existingUser models.User
		if err := h.DB.Where("email = ? AND id <> ?", *req.Email, doctor.ID).First(&existingUser).Error; err == nil {
			utils.BadRequest(c, "Email already in use by another account")
			return
		}
		doctor.Email = *req.Email
	}
	if req.FirstName != nil {
		doctor.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		doctor.LastName = *req.LastName
	}
	if req.Gender != nil {
		doctor.Gender = *req.Gender
	}
	if req.PhoneNumber != nil {
		doctor.PhoneNumber = *req.PhoneNumber
	}
	if req.Specialty != nil {
		doctor.Specialty = *req.Specialty
	}
	if req.Experience != nil {
		doctor.Experience = *req.Experience
	}
	if req.Fee != nil {
		doctor.Fee = *req.Fee
	}

	if err := h.DB.Save(doctor).Error; err != nil {
		utils.InternalServerError(c, "Failed to update doctor: "+err.Error())
		return
	}

	h.Activity.Record(c.Request.Context(), activity.TypeDoctor, "%s's profile was updated", doctor.FullName())

	utils.Success(c, doctor.Sanitize())
}

// DeleteDoctor handles removing a doctor by ID (admin). Their appointments
// are removed with them.
func (h *UserHandler) DeleteDoctor(c *gin.Context) {
	doctor, ok := h.findDoctor(c)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doctor_id = ?", doctor.ID).Delete(&models.Appointment{}).Error; err != nil {
			return err
		}
		return tx.Delete(doctor).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to delete doctor: "+err.Error())
		return
	}

	h.Activity.Record(c.Request.Context(), activity.TypeDoctor, "%s was removed from the staff", doctor.FullName())

	c.JSON(http.StatusOK, gin.H{"msg": utils.MsgSuccess})
}

func (h *UserHandler) findDoctor(c *gin.Context) (*models.User, bool) {
	var doctor models.User
	if err := h.DB.Where("id = ? AND role = ?", c.Param("id"), models.RoleDoctor).First(&doctor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &doctor, true
}

func sanitizeAll(users []models.User) []models.UserSanitized {
	sanitized := make([]models.UserSanitized, len(users))
	for i := range users {
		sanitized[i] = users[i].Sanitize()
	}
	return sanitized
}
