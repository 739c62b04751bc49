package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"healthnexus-portal/internal/middleware"
	"healthnexus-portal/internal/models"
	"healthnexus-portal/internal/utils"
)

// ReportHandler handles medical report requests.
type ReportHandler struct {
	DB *gorm.DB
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(db *gorm.DB) *ReportHandler {
	return &ReportHandler{DB: db}
}

// CreateReportRequest represents the request body for writing a report.
type CreateReportRequest struct {
	PatientID     string            `json:"patientId" binding:"required"`
	AppointmentID string            `json:"appointmentId"`
	ReportType    models.ReportType `json:"reportType" binding:"required"`
	ReportDate    string            `json:"reportDate"` // RFC 3339, defaults to now
	Title         string            `json:"title" binding:"required"`
	Diagnosis     string            `json:"diagnosis" binding:"required"`
	Prescription  string            `json:"prescription"`
	Notes         string            `json:"notes"`
}

// CreateReport handles a doctor writing a report for a patient.
func (h *ReportHandler) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	doctorID, _ := middleware.GetUserIDFromContext(c)

	var patient models.User
	if err := h.DB.Where("id = ? AND role = ?", req.PatientID, models.RolePatient).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error verifying patient: "+err.Error())
		}
		return
	}

	reportDate := time.Now()
	if req.ReportDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.ReportDate)
		if err != nil {
			utils.BadRequest(c, "Invalid date format. Please use ISO 8601 format (YYYY-MM-DDTHH:MM:SSZ)")
			return
		}
		reportDate = parsed
	}

	if req.AppointmentID != "" {
		var appointment models.Appointment
		err := h.DB.Where("id = ? AND patient_id = ?", req.AppointmentID, patient.ID).First(&appointment).Error
		if err != nil {
			utils.BadRequest(c, "Appointment does not belong to this patient")
			return
		}
	}

	report := models.Report{
		PatientID:     patient.ID,
		DoctorID:      doctorID,
		AppointmentID: req.AppointmentID,
		ReportType:    req.ReportType,
		ReportDate:    reportDate,
		Title:         req.Title,
		Diagnosis:     req.Diagnosis,
		Prescription:  req.Prescription,
		Notes:         req.Notes,
	}

	if err := h.DB.Create(&report).Error; err != nil {
		utils.InternalServerError(c, "Failed to create report: "+err.Error())
		return
	}

	utils.Created(c, report)
}

// GetPatientReports handles fetching the reports of one patient, newest first.
// Patients see their own, doctors and admins anyone's.
func (h *ReportHandler) GetPatientReports(c *gin.Context) {
	patientID := c.Param("patientId")
	if !middleware.CanAccessPatient(c, patientID) {
		utils.Forbidden(c, "You are not authorized to view these reports")
		return
	}

	var reports []models.Report
	if err := h.DB.Where("patient_id = ?", patientID).Order("report_date desc").Find(&reports).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch reports: "+err.Error())
		return
	}

	utils.Success(c, reports)
}
