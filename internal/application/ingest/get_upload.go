package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/givemetry/advancement/internal/domain/donor"
)

var ErrGetUpload = errors.New("failed to get upload job")

type GetUploadInput struct {
	JobID          string
	OrganizationID string
}

type UploadRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type GetUploadOutput struct {
	JobID          string            `json:"job_id"`
	Filename       string            `json:"filename"`
	Status         string            `json:"status"`
	DataType       string            `json:"data_type"`
	FieldMapping   map[string]string `json:"field_mapping,omitempty"`
	RowCount       int               `json:"row_count"`
	ProcessedCount int               `json:"processed_count"`
	ErrorCount     int               `json:"error_count"`
	Progress       int               `json:"progress"`
	Errors         []UploadRowError  `json:"errors,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	StartedAt      *time.Time        `json:"started_at,omitempty"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
}

type GetUpload interface {
	Execute(ctx context.Context, in GetUploadInput) (GetUploadOutput, error)
}

type getUpload struct {
	jobs donor.UploadJobReader
}

func NewGetUpload(jobs donor.UploadJobReader) GetUpload {
	return &getUpload{jobs: jobs}
}

func (uc *getUpload) Execute(ctx context.Context, in GetUploadInput) (GetUploadOutput, error) {
	job, err := uc.jobs.GetByID(ctx, in.JobID)
	if err != nil {
		if errors.Is(err, donor.ErrUploadJobNotFound) {
			return GetUploadOutput{}, donor.ErrUploadJobNotFound
		}
		return GetUploadOutput{}, fmt.Errorf("%w: %v", ErrGetUpload, err)
	}

	// Tenant isolation: a job id from another organization reads as absent.
	if in.OrganizationID != "" && job.OrganizationID != in.OrganizationID {
		return GetUploadOutput{}, donor.ErrUploadJobNotFound
	}

	out := GetUploadOutput{
		JobID:          job.ID,
		Filename:       job.Filename,
		Status:         string(job.Status),
		DataType:       string(job.DataType),
		FieldMapping:   job.FieldMapping,
		RowCount:       job.RowCount,
		ProcessedCount: job.ProcessedCount,
		ErrorCount:     job.ErrorCount,
		Progress:       job.Progress,
		CreatedAt:      job.CreatedAt,
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
	}

	for _, rowErr := range job.Errors {
		out.Errors = append(out.Errors, UploadRowError{
			Row:     rowErr.Row,
			Field:   rowErr.Field,
			Message: rowErr.Message,
		})
	}
	return out, nil
}
