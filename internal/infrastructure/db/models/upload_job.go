package models

import "time"

type UploadJob struct {
	ID             string  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OrganizationID string  `gorm:"type:uuid;not null;index"`
	UserID         *string `gorm:"type:uuid"`
	Filename       string  `gorm:"type:text;not null"`
	StoragePath    string  `gorm:"type:text;not null"`
	Status         string  `gorm:"type:text;not null;index"`
	DataType       string  `gorm:"type:text;not null"`
	FieldMapping   *string `gorm:"type:jsonb"`
	RowCount       int     `gorm:"not null;default:0"`
	ProcessedCount int     `gorm:"not null;default:0"`
	ErrorCount     int     `gorm:"not null;default:0"`
	Progress       int     `gorm:"not null;default:0"`
	Errors         *string `gorm:"type:jsonb"`
	CreatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
}

func (UploadJob) TableName() string {
	return "upload_jobs"
}
