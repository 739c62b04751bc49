package models

// Feedback is a patient's comment on the hospital or a doctor
type Feedback struct {
	BaseModel
	PatientID string `gorm:"size:36;index" json:"patientId"`
	DoctorID  string `gorm:"size:36;index" json:"doctorId,omitempty"`
	Subject   string `gorm:"size:255" json:"subject"`
	Message   string `gorm:"type:text;not null" json:"message"`
	Rating    int    `gorm:"default:0" json:"rating"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
}

// FeedbackView adds the patient name for the admin listing.
type FeedbackView struct {
	Feedback
	PatientName  string `json:"patientName,omitempty"`
	PatientEmail string `json:"patientEmail,omitempty"`
}
