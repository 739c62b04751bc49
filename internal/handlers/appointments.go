package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"healthnexus-portal/internal/activity"
	"healthnexus-portal/internal/middleware"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/status"
	"healthnexus-portal/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	DB       *gorm.DB
	Activity *activity.Recorder
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(db *gorm.DB, rec *activity.Recorder) *AppointmentHandler {
	return &AppointmentHandler{DB: db, Activity: rec}
}

// CreateAppointmentRequest represents the request body for booking an appointment.
type CreateAppointmentRequest struct {
	DoctorID    string `json:"doctorId" binding:"required"`
	PatientID   string `json:"patientId"` // Taken from the token when a patient books
	Date        string `json:"date" binding:"required"`
	Slot        string `json:"slot" binding:"required"`
	Description string `json:"description"`
}

// UpdateAppointmentRequest is the body of both body-style update endpoints.
// Only fields present in the request are changed.
type UpdateAppointmentRequest struct {
	Status      *string `json:"status"`
	Date        *string `json:"date"`
	Slot        *string `json:"slot"`
	Description *string `json:"description"`
}

// CreateAppointment handles booking a new appointment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RolePatient {
		if req.PatientID != "" && req.PatientID != userID {
			utils.Forbidden(c, "Patients can only book appointments for themselves.")
			return
		}
		req.PatientID = userID
	}
	if req.PatientID == "" {
		utils.BadRequest(c, "patientId is required")
		return
	}

	var doctor models.User
	if err := h.DB.Where("id = ? AND role = ?", req.DoctorID, models.RoleDoctor).First(&doctor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error verifying doctor: "+err.Error())
		}
		return
	}
	var patient models.User
	if err := h.DB.Where("id = ? AND role = ?", req.PatientID, models.RolePatient).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}

	appointment := models.Appointment{
		PatientID:   patient.ID,
		DoctorID:    doctor.ID,
		Date:        req.Date,
		Slot:        req.Slot,
		Status:      models.StatusScheduled,
		Description: req.Description,
	}
	if err := h.DB.Create(&appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to create appointment: "+err.Error())
		return
	}
	appointment.Doctor = doctor
	appointment.Patient = patient

	h.Activity.Record(c.Request.Context(), activity.TypeAppointment,
		"%s booked an appointment with %s on %s", patient.FullName(), doctor.FullName(), appointment.Date)

	utils.Created(c, appointment.View())
}

// GetAllAppointments lists every appointment for the admin dashboard. The list
// is sent under both "appointments" and "value".
func (h *AppointmentHandler) GetAllAppointments(c *gin.Context) {
	var appointments []models.Appointment
	err := h.DB.Preload("Patient").Preload("Doctor").
		Order("date desc").Order("created_at desc").
		Find(&appointments).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	views := toViews(appointments)
	c.JSON(http.StatusOK, gin.H{"msg": utils.MsgSuccess, "appointments": views, "value": views})
}

// GetPatientAppointments lists the appointments of one patient.
func (h *AppointmentHandler) GetPatientAppointments(c *gin.Context) {
	patientID := c.Param("patientId")
	if !middleware.CanAccessPatient(c, patientID) {
		utils.Forbidden(c, "You can only view your own appointments.")
		return
	}

	var appointments []models.Appointment
	err := h.DB.Preload("Patient").Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("date desc").Order("created_at desc").
		Find(&appointments).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	utils.Success(c, toViews(appointments))
}

// UpdateStatusByPath handles PUT /app/status/:status/:id.
func (h *AppointmentHandler) UpdateStatusByPath(c *gin.Context) {
	raw := c.Param("status")
	h.update(c, UpdateAppointmentRequest{Status: &raw})
}

// UpdateAppointment handles the body-style update used by both the admin and
// the generic endpoint. Route middleware decides who may reach which.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	h.update(c, req)
}

func (h *AppointmentHandler) update(c *gin.Context, req UpdateAppointmentRequest) {
	appointment, ok := h.loadForChange(c)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Status != nil {
		raw := strings.TrimSpace(*req.Status)
		if !writableStatus(raw) {
			utils.BadRequest(c, "Invalid status: "+raw)
			return
		}
		updates["status"] = raw
		appointment.Status = raw
	}
	if req.Date != nil {
		updates["date"] = *req.Date
		appointment.Date = *req.Date
	}
	if req.Slot != nil {
		updates["slot"] = *req.Slot
		appointment.Slot = *req.Slot
	}
	if req.Description != nil {
		updates["description"] = *req.Description
		appointment.Description = *req.Description
	}
	if len(updates) == 0 {
		utils.BadRequest(c, "No changes provided")
		return
	}

	if err := h.DB.Model(appointment).Updates(updates).Error; err != nil {
		utils.InternalServerError(c, "Failed to update appointment: "+err.Error())
		return
	}

	if req.Status != nil {
		h.Activity.Record(c.Request.Context(), activity.TypeAppointment,
			"Appointment of %s with %s is now %s", appointment.Patient.FullName(), appointment.Doctor.FullName(),
			status.Normalize(appointment.Status).Label())
	} else {
		h.Activity.Record(c.Request.Context(), activity.TypeAppointment,
			"Appointment of %s rescheduled to %s %s", appointment.Patient.FullName(), appointment.Date, appointment.Slot)
	}

	utils.Success(c, appointment.View())
}

// DeleteAppointment removes an appointment.
func (h *AppointmentHandler) DeleteAppointment(c *gin.Context) {
	appointment, ok := h.loadForChange(c)
	if !ok {
		return
	}

	if err := h.DB.Delete(appointment).Error; err != nil {
		utils.InternalServerError(c, "Failed to delete appointment: "+err.Error())
		return
	}

	h.Activity.Record(c.Request.Context(), activity.TypeAppointment,
		"Appointment of %s with %s on %s was removed", appointment.Patient.FullName(), appointment.Doctor.FullName(), appointment.Date)

	utils.Success(c, gin.H{"id": appointment.ID})
}

// loadForChange fetches the :id appointment and checks that the caller may
// change it: admins always, doctors their own schedule, patients their own
// bookings. It writes the error response itself.
func (h *AppointmentHandler) loadForChange(c *gin.Context) (*models.Appointment, bool) {
	var appointment models.Appointment
	if err := h.DB.Preload("Patient").Preload("Doctor").First(&appointment, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}

	userID, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	switch role {
	case models.RoleAdmin:
	case models.RoleDoctor:
		if appointment.DoctorID != userID {
			utils.Forbidden(c, "This appointment is not on your schedule.")
			return nil, false
		}
	default:
		if appointment.PatientID != userID {
			utils.Forbidden(c, "You can only change your own appointments.")
			return nil, false
		}
	}
	return &appointment, true
}

// writableStatus accepts any spelling that normalizes to one of the four
// bookable states. The raw spelling is what gets stored.
func writableStatus(raw string) bool {
	switch status.Normalize(raw) {
	case status.Pending, status.Confirmed, status.Cancelled, status.Completed:
		return true
	}
	return false
}

func toViews(appointments []models.Appointment) []models.AppointmentView {
	views := make([]models.AppointmentView, len(appointments))
	for i, a := range appointments {
		views[i] = a.View()
	}
	return views
}
