package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/givemetry/advancement/internal/domain/donor"
)

type fakeEnqueuer struct {
	job donor.UploadJob
	err error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, job donor.UploadJob) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.job = job
	return "job-1", nil
}

type fakeReader struct {
	job *donor.UploadJob
	err error
}

func (f *fakeReader) GetByID(context.Context, string) (*donor.UploadJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.job, nil
}

func TestStartUploadEnqueuesJob(t *testing.T) {
	t.Parallel()

	enqueuer := &fakeEnqueuer{}
	out, err := NewStartUpload(enqueuer).Execute(context.Background(), StartUploadInput{
		OrganizationID: "org-1",
		UserID:         "user-1",
		StoragePath:    "uploads/Spring Gifts.CSV",
		DataType:       "Gifts",
	})
	require.NoError(t, err)

	assert.Equal(t, "job-1", out.JobID)
	assert.Equal(t, "queued", out.Status)
	assert.Equal(t, donor.DataTypeGifts, enqueuer.job.DataType)
	assert.Equal(t, "Spring Gifts.CSV", enqueuer.job.Filename)
	assert.Equal(t, "uploads/Spring Gifts.CSV", enqueuer.job.StoragePath)
}

func TestStartUploadRejectsNonCSV(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", "data.json", "archive.csv.gz", "noext"} {
		_, err := NewStartUpload(&fakeEnqueuer{}).Execute(context.Background(), StartUploadInput{
			StoragePath: path,
			DataType:    "gifts",
		})
		assert.ErrorIs(t, err, ErrInvalidUploadSource, "path %q", path)
	}
}

func TestStartUploadRejectsUnknownDataType(t *testing.T) {
	t.Parallel()

	_, err := NewStartUpload(&fakeEnqueuer{}).Execute(context.Background(), StartUploadInput{
		StoragePath: "data.csv",
		DataType:    "pledges",
	})
	assert.ErrorIs(t, err, ErrInvalidDataType)
}

func TestStartUploadEnqueueFailure(t *testing.T) {
	t.Parallel()

	_, err := NewStartUpload(&fakeEnqueuer{err: errors.New("db down")}).Execute(context.Background(), StartUploadInput{
		StoragePath: "data.csv",
		DataType:    "contacts",
	})
	assert.ErrorIs(t, err, ErrEnqueueUpload)
}

func TestGetUploadMapsJob(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	reader := &fakeReader{job: &donor.UploadJob{
		ID:             "job-1",
		OrganizationID: "org-1",
		Filename:       "alumni.csv",
		Status:         donor.UploadCompletedWithErrors,
		DataType:       donor.DataTypeConstituents,
		FieldMapping:   donor.FieldMapping{"Name": "last_name"},
		RowCount:       3,
		ProcessedCount: 2,
		ErrorCount:     1,
		Progress:       100,
		Errors:         []donor.RowError{{Row: 2, Field: "constituent_id", Message: "missing external id"}},
		CreatedAt:      now,
	}}

	out, err := NewGetUpload(reader).Execute(context.Background(), GetUploadInput{JobID: "job-1", OrganizationID: "org-1"})
	require.NoError(t, err)

	assert.Equal(t, "completed_with_errors", out.Status)
	assert.Equal(t, 3, out.RowCount)
	assert.Equal(t, 2, out.ProcessedCount)
	assert.Equal(t, 1, out.ErrorCount)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, 2, out.Errors[0].Row)
	assert.Equal(t, "last_name", out.FieldMapping["Name"])
}

func TestGetUploadTenantIsolation(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{job: &donor.UploadJob{ID: "job-1", OrganizationID: "org-1"}}

	_, err := NewGetUpload(reader).Execute(context.Background(), GetUploadInput{JobID: "job-1", OrganizationID: "org-2"})
	assert.ErrorIs(t, err, donor.ErrUploadJobNotFound)
}

func TestGetUploadNotFound(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{err: donor.ErrUploadJobNotFound}

	_, err := NewGetUpload(reader).Execute(context.Background(), GetUploadInput{JobID: "nope"})
	assert.ErrorIs(t, err, donor.ErrUploadJobNotFound)
}
