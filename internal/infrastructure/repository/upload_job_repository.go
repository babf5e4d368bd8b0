package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/givemetry/advancement/internal/domain/donor"
	"github.com/givemetry/advancement/internal/infrastructure/db/models"
)

type UploadJobRepository struct {
	db *gorm.DB
}

func NewUploadJobRepository(db *gorm.DB) *UploadJobRepository {
	return &UploadJobRepository{db: db}
}

func (r *UploadJobRepository) Enqueue(ctx context.Context, job donor.UploadJob) (string, error) {
	row := models.UploadJob{
		OrganizationID: job.OrganizationID,
		Filename:       job.Filename,
		StoragePath:    job.StoragePath,
		Status:         string(donor.UploadQueued),
		DataType:       string(job.DataType),
	}

	if job.UserID != "" {
		userID := job.UserID
		row.UserID = &userID
	}

	if len(job.FieldMapping) > 0 {
		encoded, err := json.Marshal(job.FieldMapping)
		if err != nil {
			return "", fmt.Errorf("encode field mapping: %w", err)
		}
		s := string(encoded)
		row.FieldMapping = &s
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("create upload job: %w", err)
	}
	return row.ID, nil
}

func (r *UploadJobRepository) GetByID(ctx context.Context, jobID string) (*donor.UploadJob, error) {
	var row models.UploadJob
	err := r.db.WithContext(ctx).First(&row, "id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, donor.ErrUploadJobNotFound
		}
		return nil, fmt.Errorf("get upload job: %w", err)
	}
	return toDomainJob(row)
}

// ClaimNext selects the oldest queued job and flips it to processing with a
// conditional update. Losing the race to another worker instance is not an
// error: the update matches zero rows and the caller retries next poll.
func (r *UploadJobRepository) ClaimNext(ctx context.Context) (*donor.UploadJob, error) {
	var row models.UploadJob
	err := r.db.WithContext(ctx).
		Where("status = ?", donor.UploadQueued).
		Order("created_at ASC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find queued upload job: %w", err)
	}

	now := time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("id = ? AND status = ?", row.ID, donor.UploadQueued).
		Updates(map[string]any{
			"status":     donor.UploadProcessing,
			"started_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("claim upload job %s: %w", row.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	row.Status = string(donor.UploadProcessing)
	row.StartedAt = &now
	return toDomainJob(row)
}

// RequeueStale returns processing jobs whose worker likely died back to
// queued. StartedAt is cleared so the next claim starts a fresh window.
func (r *UploadJobRepository) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res := r.db.WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("status = ? AND started_at < ?", donor.UploadProcessing, cutoff).
		Updates(map[string]any{
			"status":     donor.UploadQueued,
			"started_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("requeue stale upload jobs: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (r *UploadJobRepository) SaveFieldMapping(ctx context.Context, jobID string, mapping donor.FieldMapping) error {
	encoded, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("encode field mapping: %w", err)
	}

	err = r.db.WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("id = ?", jobID).
		Update("field_mapping", string(encoded)).Error
	if err != nil {
		return fmt.Errorf("save field mapping for job %s: %w", jobID, err)
	}
	return nil
}

// UpdateProgress only touches jobs still in processing, so a terminal status
// can never regress to a mid-run progress value.
func (r *UploadJobRepository) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	err := r.db.WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("id = ? AND status = ?", jobID, donor.UploadProcessing).
		Update("progress", progress).Error
	if err != nil {
		return fmt.Errorf("update progress for job %s: %w", jobID, err)
	}
	return nil
}

// Finish persists the terminal status together with the final counters in a
// single update, guarded on the processing status to keep terminal states
// immutable.
func (r *UploadJobRepository) Finish(ctx context.Context, jobID string, result donor.UploadResult) error {
	stored := result.Errors
	if len(stored) > donor.MaxStoredRowErrors {
		stored = stored[:donor.MaxStoredRowErrors]
	}
	encoded, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode row errors: %w", err)
	}

	res := r.db.WithContext(ctx).
		Model(&models.UploadJob{}).
		Where("id = ? AND status = ?", jobID, donor.UploadProcessing).
		Updates(map[string]any{
			"status":          string(result.Status),
			"row_count":       result.RowCount,
			"processed_count": result.ProcessedCount,
			"error_count":     result.ErrorCount,
			"progress":        100,
			"errors":          string(encoded),
			"completed_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("finish upload job %s: %w", jobID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finish upload job %s: job is not in processing state", jobID)
	}
	return nil
}

func toDomainJob(row models.UploadJob) (*donor.UploadJob, error) {
	job := &donor.UploadJob{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		Filename:       row.Filename,
		StoragePath:    row.StoragePath,
		Status:         donor.UploadStatus(row.Status),
		DataType:       donor.DataType(row.DataType),
		RowCount:       row.RowCount,
		ProcessedCount: row.ProcessedCount,
		ErrorCount:     row.ErrorCount,
		Progress:       row.Progress,
		CreatedAt:      row.CreatedAt,
		StartedAt:      row.StartedAt,
		CompletedAt:    row.CompletedAt,
	}

	if row.UserID != nil {
		job.UserID = *row.UserID
	}
	if row.FieldMapping != nil && *row.FieldMapping != "" {
		if err := json.Unmarshal([]byte(*row.FieldMapping), &job.FieldMapping); err != nil {
			return nil, fmt.Errorf("decode field mapping for job %s: %w", row.ID, err)
		}
	}
	if row.Errors != nil && *row.Errors != "" {
		if err := json.Unmarshal([]byte(*row.Errors), &job.Errors); err != nil {
			return nil, fmt.Errorf("decode row errors for job %s: %w", row.ID, err)
		}
	}
	return job, nil
}
