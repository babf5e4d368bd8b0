package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/givemetry/advancement/internal/domain/donor"
)

var (
	ErrInvalidUploadSource = errors.New("invalid upload source")
	ErrInvalidDataType     = errors.New("invalid data type")
	ErrEnqueueUpload       = errors.New("failed to enqueue upload job")
)

type StartUploadInput struct {
	OrganizationID string
	UserID         string
	Filename       string
	StoragePath    string
	DataType       string
	FieldMapping   map[string]string
}

type StartUploadOutput struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type StartUpload interface {
	Execute(ctx context.Context, in StartUploadInput) (StartUploadOutput, error)
}

type startUpload struct {
	jobs donor.UploadJobEnqueuer
}

func NewStartUpload(jobs donor.UploadJobEnqueuer) StartUpload {
	return &startUpload{jobs: jobs}
}

func (uc *startUpload) Execute(ctx context.Context, in StartUploadInput) (StartUploadOutput, error) {
	storagePath := strings.TrimSpace(in.StoragePath)
	if storagePath == "" || strings.ToLower(filepath.Ext(storagePath)) != ".csv" {
		return StartUploadOutput{}, ErrInvalidUploadSource
	}

	dataType := donor.DataType(strings.ToLower(strings.TrimSpace(in.DataType)))
	switch dataType {
	case donor.DataTypeConstituents, donor.DataTypeGifts, donor.DataTypeContacts:
	default:
		return StartUploadOutput{}, ErrInvalidDataType
	}

	filename := strings.TrimSpace(in.Filename)
	if filename == "" {
		filename = filepath.Base(storagePath)
	}

	jobID, err := uc.jobs.Enqueue(ctx, donor.UploadJob{
		OrganizationID: in.OrganizationID,
		UserID:         in.UserID,
		Filename:       filename,
		StoragePath:    storagePath,
		DataType:       dataType,
		FieldMapping:   in.FieldMapping,
	})
	if err != nil {
		return StartUploadOutput{}, fmt.Errorf("%w: %v", ErrEnqueueUpload, err)
	}

	return StartUploadOutput{
		JobID:  jobID,
		Status: string(donor.UploadQueued),
	}, nil
}
