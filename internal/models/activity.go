package models

// Activity is one line of the admin activity log
type Activity struct {
	BaseModel
	Type    string `gorm:"size:20;index" json:"type"`
	Message string `gorm:"size:500" json:"message"`
}
