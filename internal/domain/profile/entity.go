package profile

import "time"

// Profile holds the per-user presentation data owned by this service. Identity
// (name, email, roles) lives with the authentication provider.
type Profile struct {
	UserID      int64     `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	PictureFile string    `gorm:"column:picture_file" json:"picture_file,omitempty"`
	PictureURL  string    `gorm:"column:picture_url" json:"picture_url,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }
