package models

// StatusScheduled is the raw status given to new bookings. Statuses are stored
// exactly as clients send them; readers normalise on every read.
const StatusScheduled = "Scheduled"

// Appointment represents a booked slot with a doctor
type Appointment struct {
	BaseModel
	PatientID   string `gorm:"size:36;index" json:"patientId"`
	DoctorID    string `gorm:"size:36;index" json:"doctorId"`
	Date        string `gorm:"size:10;index" json:"date"`
	Slot        string `gorm:"size:20" json:"slot"`
	Status      string `gorm:"size:30;default:'Scheduled'" json:"status"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}

// AppointmentView is the listing shape, flattening the doctor and patient
// names the portal displays.
type AppointmentView struct {
	Appointment
	DoctorName  string `json:"doctorName,omitempty"`
	Specialty   string `json:"specialty,omitempty"`
	PatientName string `json:"patientName,omitempty"`
}

// View builds the listing shape. Doctor and Patient must be preloaded for the
// names to be filled.
func (a Appointment) View() AppointmentView {
	return AppointmentView{
		Appointment: a,
		DoctorName:  a.Doctor.FullName(),
		Specialty:   a.Doctor.Specialty,
		PatientName: a.Patient.FullName(),
	}
}
