package models

import (
	"time"
)

// ReportType represents the type of medical report
type ReportType string

const (
	ReportTypeConsultation  ReportType = "Consultation"
	ReportTypeLabResult     ReportType = "LabResult"
	ReportTypePrescription  ReportType = "Prescription"
	ReportTypeImaging       ReportType = "Imaging"
	ReportTypeDischargeNote ReportType = "DischargeSummary"
)

// Report is a medical report a doctor writes for a patient
type Report struct {
	BaseModel
	PatientID     string     `gorm:"size:36;index" json:"patientId"`
	DoctorID      string     `gorm:"size:36;index" json:"doctorId"`
	AppointmentID string     `gorm:"size:36;index" json:"appointmentId,omitempty"`
	ReportType    ReportType `gorm:"size:50" json:"reportType"`
	ReportDate    time.Time  `json:"reportDate"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Diagnosis     string     `gorm:"type:text" json:"diagnosis"`
	Prescription  string     `gorm:"type:text" json:"prescription,omitempty"`
	Notes         string     `gorm:"type:text" json:"notes,omitempty"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}
