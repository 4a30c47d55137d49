package upload

import "time"

// StoredFile describes one ingested file. It is created once at ingestion and
// never updated; domain records reference it by StoredName or Path.
type StoredFile struct {
	ID           string    `gorm:"column:id;primaryKey" json:"id"`
	OwnerID      int64     `gorm:"column:owner_id;index" json:"owner_id"`
	Field        string    `gorm:"column:field" json:"field"`
	Role         Role      `gorm:"column:role;index" json:"role"`
	OriginalName string    `gorm:"column:original_name" json:"original_name"`
	StoredName   string    `gorm:"column:stored_name;uniqueIndex" json:"stored_name"`
	Path         string    `gorm:"column:path" json:"-"` // local path or blob key
	URL          string    `gorm:"column:url" json:"url"`
	SizeBytes    int64     `gorm:"column:size_bytes" json:"size_bytes"`
	ContentType  string    `gorm:"column:content_type" json:"content_type"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (StoredFile) TableName() string { return "uploads" }
