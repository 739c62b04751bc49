package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/middleware"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/utils"
)

// FeedbackHandler handles patient feedback.
type FeedbackHandler struct {
	DB       *gorm.DB
	Activity *activity.Recorder
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(db *gorm.DB, rec *activity.Recorder) *FeedbackHandler {
	return &FeedbackHandler{DB: db, Activity: rec}
}

// SubmitFeedbackRequest represents the request body for submitting feedback.
type SubmitFeedbackRequest struct {
	DoctorID string `json:"doctorId"`
	Subject  string `json:"subject"`
	Message  string `json:"message" binding:"required"`
	Rating   int    `json:"rating" binding:"gte=0,lte=5"`
}

// SubmitFeedback handles a patient leaving feedback.
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	var req SubmitFeedbackRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patientID, _ := middleware.GetUserIDFromContext(c)
	var patient models.User
	if err := h.DB.First(&patient, "id = ?", patientID).Error; err != nil {
		utils.NotFound(c, "Patient not found")
		return
	}

	if req.DoctorID != "" {
		var doctor models.User
		if err := h.DB.Where("id = ? AND role = ?", req.DoctorID, models.RoleDoctor).First(&doctor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFound(c, "Doctor not found")
			} else {
				utils.InternalServerError(c, "Database error verifying doctor: "+err.Error())
			}
			return
		}
	}

	feedback := models.Feedback{
		PatientID: patient.ID,
		DoctorID:  req.DoctorID,
		Subject:   req.Subject,
		Message:   req.Message,
		Rating:    req.Rating,
	}
	if err := h.DB.Create(&feedback).Error; err != nil {
		utils.InternalServerError(c, "Failed to save feedback: "+err.Error())
		return
	}

	h.Activity.Record(c.Request.Context(), activity.TypeFeedback, "New feedback from %s", patient.FullName())

	utils.Created(c, feedback)
}

// GetAllFeedback lists feedback for the admin dashboard under "feedback".
func (h *FeedbackHandler) GetAllFeedback(c *gin.Context) {
	var rows []models.Feedback
	if err := h.DB.Preload("Patient").Order("created_at desc").Find(&rows).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch feedback: "+err.Error())
		return
	}

	views := make([]models.FeedbackView, len(rows))
	for i, f := range rows {
		views[i] = models.FeedbackView{
			Feedback:     f,
			PatientName:  f.Patient.FullName(),
			PatientEmail: f.Patient.Email,
		}
	}

	utils.SuccessField(c, "feedback", views)
}
