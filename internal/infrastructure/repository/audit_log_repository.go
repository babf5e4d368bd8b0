package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/givemetry/advancement/internal/domain/donor"
	"github.com/givemetry/advancement/internal/infrastructure/db/models"
)

type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Record(ctx context.Context, entry donor.AuditEntry) error {
	row := models.AuditLog{
		OrganizationID: entry.OrganizationID,
		Action:         entry.Action,
		ResourceType:   entry.ResourceType,
		ResourceID:     entry.ResourceID,
	}

	if entry.UserID != "" {
		userID := entry.UserID
		row.UserID = &userID
	}

	if len(entry.Details) > 0 {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		s := string(encoded)
		row.Details = &s
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create audit log entry: %w", err)
	}
	return nil
}
