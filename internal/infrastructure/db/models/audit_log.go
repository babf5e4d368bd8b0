package models

import "time"

type AuditLog struct {
	ID             string  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OrganizationID string  `gorm:"type:uuid;index"`
	UserID         *string `gorm:"type:uuid"`
	Action         string  `gorm:"type:text;not null;index"`
	ResourceType   string  `gorm:"type:text;not null"`
	ResourceID     string  `gorm:"type:text"`
	Details        *string `gorm:"type:jsonb"`
	CreatedAt      time.Time
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

type Organization struct {
	ID             string `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Name           string `gorm:"size:255;not null"`
	IsActive       bool   `gorm:"not null;default:true"`
	LastAnalyzedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Organization) TableName() string {
	return "organizations"
}

type PredictionHistory struct {
	ID             string  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OrganizationID string  `gorm:"type:uuid;not null;index"`
	ConstituentID  string  `gorm:"type:uuid;not null;index"`
	Score          float64 `gorm:"not null"`
	Factors        *string `gorm:"type:jsonb"`
	ScoredAt       time.Time
}

func (PredictionHistory) TableName() string {
	return "prediction_history"
}
