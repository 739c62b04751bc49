package models

// News is an article shown on the public site and optionally pushed to the ticker
type News struct {
	BaseModel
	Title     string `gorm:"size:255;not null" json:"title"`
	Content   string `gorm:"type:text" json:"content"`
	Category  string `gorm:"size:50;index" json:"category"`
	Published bool   `gorm:"default:false" json:"published"`
	AuthorID  string `gorm:"size:36" json:"authorId,omitempty"`
}
